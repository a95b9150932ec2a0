package http

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// attestationCORS returns CORS for the read-only attestation routes, or nil when CORS
// is disabled or no usable origin is configured. Auditor dashboards are the only
// browser clients: webhook intake and honeypots never answer preflights.
//
// allowOrigins is a comma-separated list of http(s) origins, or "*".
func attestationCORS(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins, rejected := parseOrigins(allowOrigins)
	for _, origin := range rejected {
		logger.Warn("ignoring invalid CORS origin", slog.String("origin", origin))
	}
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no valid origins configured, CORS will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Content-Type"},
		ExposeHeaders: []string{"X-Request-Id", "X-License-Error"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	logger.Info("CORS enabled for attestation routes", slog.Any("origins", origins))
	return cors.New(config)
}

// parseOrigins splits a comma-separated origin list. Entries that are not "*" or a
// bare http(s) scheme+host origin are returned in rejected.
func parseOrigins(raw string) (origins, rejected []string) {
	for part := range strings.SplitSeq(raw, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}, rejected
		}

		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" ||
			u.Path != "" || u.RawQuery != "" || u.User != nil {
			rejected = append(rejected, origin)
			continue
		}
		origins = append(origins, u.Scheme+"://"+u.Host)
	}
	return origins, rejected
}
