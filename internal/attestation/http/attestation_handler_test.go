package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/attestation/http/dto"
	"github.com/allisson/trustcore/internal/attestation/usecase/mocks"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *mocks.MockAttestationLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := &mocks.MockAttestationLog{}
	t.Cleanup(func() { log.AssertExpectations(t) })

	handler := NewAttestationHandler(log, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := gin.New()
	router.GET("/v1/attestation/roots", handler.ListRootsHandler)
	router.GET("/v1/attestation/roots/:date", handler.GetRootHandler)
	router.GET("/v1/attestation/current", handler.CurrentRootHandler)
	router.GET("/v1/attestation/events", handler.ListEventsHandler)
	return router, log
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestAttestationHandler_GetRootHandler(t *testing.T) {
	root := &attestationDomain.DailyMerkleRoot{
		Date:       "2026-05-01",
		Root:       "abcd",
		EventCount: 2,
		SignedBy:   "attest-1",
		Signature:  "ff",
		BuildHash:  "build-1",
		ComputedAt: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	}

	t.Run("found", func(t *testing.T) {
		router, log := setupTestRouter(t)
		log.On("GetRoot", mock.Anything, "20260501", 0).Return(root, nil).Once()

		w := doGet(router, "/v1/attestation/roots/20260501")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.RootResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "abcd", resp.Root)
		assert.Equal(t, 2, resp.EventCount)
	})

	t.Run("not found", func(t *testing.T) {
		router, log := setupTestRouter(t)
		log.On("GetRoot", mock.Anything, "20260502", 0).Return(nil, attestationDomain.ErrRootNotFound).Once()

		w := doGet(router, "/v1/attestation/roots/20260502")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		router, log := setupTestRouter(t)
		log.On("GetRoot", mock.Anything, "yesterday", 0).Return(nil, attestationDomain.ErrInvalidDate).Once()

		w := doGet(router, "/v1/attestation/roots/yesterday")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("later segment", func(t *testing.T) {
		router, log := setupTestRouter(t)
		later := *root
		later.Segment = 2
		log.On("GetRoot", mock.Anything, "20260501", 2).Return(&later, nil).Once()

		w := doGet(router, "/v1/attestation/roots/20260501?segment=2")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.RootResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Segment)
	})

	t.Run("invalid segment", func(t *testing.T) {
		router, log := setupTestRouter(t)

		w := doGet(router, "/v1/attestation/roots/20260501?segment=-1")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		log.AssertNotCalled(t, "GetRoot", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAttestationHandler_ListRootsHandler(t *testing.T) {
	t.Run("paginated", func(t *testing.T) {
		router, log := setupTestRouter(t)
		log.On("ListRoots", mock.Anything, 10, 5).
			Return([]*attestationDomain.DailyMerkleRoot{{Date: "2026-05-01"}}, nil).Once()

		w := doGet(router, "/v1/attestation/roots?offset=10&limit=5")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp dto.ListRootsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
	})

	t.Run("bad limit", func(t *testing.T) {
		router, _ := setupTestRouter(t)

		w := doGet(router, "/v1/attestation/roots?limit=1000")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("storage error", func(t *testing.T) {
		router, log := setupTestRouter(t)
		log.On("ListRoots", mock.Anything, 0, 30).Return(nil, errors.New("db down")).Once()

		w := doGet(router, "/v1/attestation/roots")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAttestationHandler_CurrentRootHandler(t *testing.T) {
	router, log := setupTestRouter(t)
	log.On("DailyMerkleRoot", mock.Anything).
		Return(&attestationDomain.DailyMerkleRoot{Date: "2026-05-01", Root: "ee", EventCount: 0}, nil).Once()

	w := doGet(router, "/v1/attestation/current")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"root":"ee"`)
}

func TestAttestationHandler_ListEventsHandler(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events := []attestationDomain.Event{
		attestationDomain.NewEvent("a", "svc", nil, nil, now),
		attestationDomain.NewEvent("b", "svc", nil, nil, now),
		attestationDomain.NewEvent("c", "svc", nil, nil, now),
	}

	router, log := setupTestRouter(t)
	log.On("Snapshot").Return(events).Once()

	w := doGet(router, "/v1/attestation/events?offset=1&limit=1")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListEventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, events[1].ID.String(), resp.Data[0].ID)
	assert.Equal(t, "b", resp.Data[0].Metadata["action"])
}
