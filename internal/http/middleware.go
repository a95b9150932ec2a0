package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// healthPaths are polled by orchestrators; successful health checks log at debug.
var healthPaths = map[string]bool{"/health": true, "/ready": true}

// CustomLoggerMiddleware logs each request with its request id through slog. The
// level follows the status: 5xx error, 4xx warn, health checks debug, everything else info.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case healthPaths[path]:
			level = slog.LevelDebug
		}
		logger.LogAttrs(context.Background(), level, "http request", attrs...)
	}
}
