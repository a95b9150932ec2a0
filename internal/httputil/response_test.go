package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/trustcore/internal/errors"
)

type codedError struct{}

func (codedError) Error() string             { return "blocked" }
func (codedError) ErrorCode() apperrors.Code { return "BLOCKED_IP" }
func (codedError) Unwrap() error             { return apperrors.ErrForbidden }

func TestHandleErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{name: "not found", err: apperrors.Wrap(apperrors.ErrNotFound, "root"), wantStatus: http.StatusNotFound, wantError: "not_found"},
		{name: "conflict", err: apperrors.ErrConflict, wantStatus: http.StatusConflict, wantError: "conflict"},
		{name: "invalid input", err: apperrors.ErrInvalidInput, wantStatus: http.StatusUnprocessableEntity, wantError: "invalid_input"},
		{name: "unauthorized", err: apperrors.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "coded forbidden", err: codedError{}, wantStatus: http.StatusForbidden, wantError: "forbidden", wantCode: "BLOCKED_IP"},
		{name: "unavailable", err: apperrors.ErrUnavailable, wantStatus: http.StatusServiceUnavailable, wantError: "unavailable"},
		{name: "integrity", err: apperrors.ErrIntegrity, wantStatus: http.StatusInternalServerError, wantError: "integrity_violation"},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		HandleErrorGin(c, nil, nil)
		assert.Empty(t, w.Body.String())
	})

	t.Run("unavailable sets retry-after", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		HandleErrorGin(c, apperrors.ErrUnavailable, nil)
		assert.Equal(t, "5", w.Header().Get("Retry-After"))
	})
}

func TestHandleBadRequestGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleBadRequestGin(c, errors.New("invalid json"), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid json")
}

func TestHandleValidationErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleValidationErrorGin(c, errors.New("limit: must be no greater than 366."), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, "limit: must be no greater than 366.", resp.Message)
}

func TestHandleErrorGin_LogLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{name: "client error", err: apperrors.ErrNotFound, wantLevel: "WARN"},
		{name: "server error", err: errors.New("boom"), wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleErrorGin(c, tt.err, logger)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request failed", entry["msg"])
		})
	}
}
