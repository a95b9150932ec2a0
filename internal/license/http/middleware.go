// Package http gates gin routes on licensed features.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/trustcore/internal/errors"
	"github.com/allisson/trustcore/internal/httputil"
)

// FeatureEnforcer reports whether a feature is currently licensed.
type FeatureEnforcer interface {
	Enforce(feature string) error
}

// FeatureMiddleware aborts with 403 unless feature is licensed. License errors are
// surfaced with their code in the X-License-Error header.
func FeatureMiddleware(enforcer FeatureEnforcer, feature string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := enforcer.Enforce(feature); err != nil {
			if code := apperrors.CodeOf(err); code != "" {
				c.Header("X-License-Error", string(code))
			}
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}
		c.Next()
	}
}
