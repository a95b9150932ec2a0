package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	licenseDomain "github.com/allisson/trustcore/internal/license/domain"
)

type enforcerFunc func(feature string) error

func (f enforcerFunc) Enforce(feature string) error { return f(feature) }

func TestFeatureMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedHdr  string
	}{
		{
			name:         "licensed feature passes",
			expectedCode: http.StatusOK,
		},
		{
			name: "unlicensed feature is forbidden",
			err: &licenseDomain.LicenseError{
				Code:    licenseDomain.CodeFeatureNotLicensed,
				Feature: "attestation_api",
			},
			expectedCode: http.StatusForbidden,
			expectedHdr:  "FEATURE_NOT_LICENSED",
		},
		{
			name:         "invalid license is forbidden",
			err:          &licenseDomain.LicenseError{Code: licenseDomain.CodeLicenseInvalid},
			expectedCode: http.StatusForbidden,
			expectedHdr:  "LICENSE_INVALID",
		},
		{
			name:         "unexpected error",
			err:          errors.New("boom"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			enforcer := enforcerFunc(func(feature string) error {
				seen = feature
				return tt.err
			})

			router := gin.New()
			router.GET("/gated", FeatureMiddleware(enforcer, "attestation_api", slog.Default()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gated", nil))

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.expectedHdr, w.Header().Get("X-License-Error"))
			assert.Equal(t, "attestation_api", seen)
		})
	}
}
