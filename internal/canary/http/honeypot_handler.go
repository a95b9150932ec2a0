// Package http exposes canary honeypot routes.
package http

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	canaryUseCase "github.com/allisson/trustcore/internal/canary/usecase"
	apperrors "github.com/allisson/trustcore/internal/errors"
	"github.com/allisson/trustcore/internal/httputil"
)

// HoneypotHandler triggers a canary whenever a decoy route is requested. Decoy
// routes are never linked from legitimate clients.
type HoneypotHandler struct {
	registry canaryUseCase.Registry
	logger   *slog.Logger
}

// NewHoneypotHandler creates a HoneypotHandler.
func NewHoneypotHandler(registry canaryUseCase.Registry, logger *slog.Logger) *HoneypotHandler {
	return &HoneypotHandler{registry: registry, logger: logger}
}

// Register plants canaryID for path and routes any method on path to the decoy.
func (h *HoneypotHandler) Register(router gin.IRoutes, path, canaryID string) error {
	if _, err := h.registry.InsertCanary(FunctionPath(path), canaryID); err != nil {
		return err
	}
	router.Any(path, h.handle(canaryID))
	return nil
}

// FunctionPath is the function path a honeypot route is planted under.
func FunctionPath(route string) string {
	return "http:" + route
}

// handle answers the same 404 as a missing resource.
func (h *HoneypotHandler) handle(canaryID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.registry.TriggerCanary(c.Request.Context(), canaryID, map[string]string{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"request_id":  requestid.Get(c),
		})
		httputil.HandleErrorGin(c, apperrors.ErrNotFound, h.logger)
	}
}

// ParseHoneypots parses "path=canary-id,...". Paths must be absolute.
func ParseHoneypots(raw string) (map[string]string, error) {
	routes := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return routes, nil
	}
	for part := range strings.SplitSeq(raw, ",") {
		path, id, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.HasPrefix(path, "/") || id == "" {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "malformed honeypot entry %q", part)
		}
		if _, dup := routes[path]; dup {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "duplicate honeypot path %q", path)
		}
		routes[path] = id
	}
	return routes, nil
}
