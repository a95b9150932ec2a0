package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/trustcore/internal/metrics"
)

// MetricsServer serves Prometheus scrapes on a port of its own, outside the ingress
// rate limits and honeypot routes.
type MetricsServer struct {
	listener
}

// NewMetricsServer creates a MetricsServer. With a nil provider every path is 404.
func NewMetricsServer(host string, port int, logger *slog.Logger, provider *metrics.Provider) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())

	if provider != nil {
		router.GET("/metrics", gin.WrapH(provider.Handler()))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return &MetricsServer{listener: newListener("metrics", host, port, router, logger)}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start serves scrapes until Shutdown.
func (s *MetricsServer) Start(ctx context.Context) error {
	return s.serve()
}

// Shutdown gracefully stops the metrics listener.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx)
}
