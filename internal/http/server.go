// Package http provides the ingress HTTP server: health endpoints, verified webhook
// intake, attestation queries and canary honeypots.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	attestationHTTP "github.com/allisson/trustcore/internal/attestation/http"
	canaryHTTP "github.com/allisson/trustcore/internal/canary/http"
	licenseHTTP "github.com/allisson/trustcore/internal/license/http"
	"github.com/allisson/trustcore/internal/metrics"
	webhookHTTP "github.com/allisson/trustcore/internal/webhook/http"
	webhookUseCase "github.com/allisson/trustcore/internal/webhook/usecase"
)

// FeatureAttestationAPI is the license feature gating the attestation query routes.
const FeatureAttestationAPI = "attestation_api"

// readinessTimeout bounds all readiness checks of a single /ready request.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig carries the handlers and options the router is built from.
type RouterConfig struct {
	WebhookVerifier    webhookUseCase.Verifier
	WebhookSecrets     webhookHTTP.SecretResolver
	WebhookHandler     *webhookHTTP.WebhookHandler
	AttestationHandler *attestationHTTP.AttestationHandler
	HoneypotHandler    *canaryHTTP.HoneypotHandler

	// Honeypots maps decoy route paths to canary ids.
	Honeypots map[string]string

	// LicenseGate, when set, restricts the attestation routes to licensed deployments.
	LicenseGate licenseHTTP.FeatureEnforcer

	MetricsProvider  *metrics.Provider
	MetricsNamespace string

	CORSEnabled      bool
	CORSAllowOrigins string

	// WebhookRateLimitRPS limits webhook intake per client IP; 0 disables it.
	WebhookRateLimitRPS   float64
	WebhookRateLimitBurst int
}

// Server represents the ingress HTTP server.
type Server struct {
	listener
	router *gin.Engine
	checks map[string]ReadinessCheck
}

// NewServer creates a new HTTP server. SetupRouter must run before Start.
func NewServer(
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		listener: newListener("http", host, port, nil, logger),
		checks:   make(map[string]ReadinessCheck),
	}
}

// AddReadinessCheck registers a named check reported by /ready. It must be called
// before Start.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

// SetupRouter builds the gin router from cfg.
func (s *Server) SetupRouter(cfg RouterConfig) error {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cfg.MetricsProvider != nil {
		metricsMiddleware, err := metrics.HTTPMetricsMiddleware(cfg.MetricsProvider.MeterProvider(), cfg.MetricsNamespace)
		if err != nil {
			return err
		}
		router.Use(metricsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	if cfg.WebhookHandler != nil {
		handlers := []gin.HandlerFunc{}
		if cfg.WebhookRateLimitRPS > 0 {
			handlers = append(handlers,
				IPRateLimitMiddleware(cfg.WebhookRateLimitRPS, cfg.WebhookRateLimitBurst, s.logger),
			)
		}
		handlers = append(handlers,
			webhookHTTP.WebhookVerificationMiddleware(cfg.WebhookVerifier, cfg.WebhookSecrets, s.logger),
			cfg.WebhookHandler.ReceiveHandler,
		)
		v1.POST("/webhooks/:vendor", handlers...)
	}

	if cfg.AttestationHandler != nil {
		attestation := v1.Group("/attestation")
		if corsMiddleware := attestationCORS(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
			attestation.Use(corsMiddleware)
			// Preflights match no GET route; this gives the middleware a route to run on.
			attestation.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		}
		if cfg.LicenseGate != nil {
			attestation.Use(licenseHTTP.FeatureMiddleware(cfg.LicenseGate, FeatureAttestationAPI, s.logger))
		}
		attestation.GET("/roots", cfg.AttestationHandler.ListRootsHandler)
		attestation.GET("/roots/:date", cfg.AttestationHandler.GetRootHandler)
		attestation.GET("/current", cfg.AttestationHandler.CurrentRootHandler)
		attestation.GET("/events", cfg.AttestationHandler.ListEventsHandler)
	}

	if cfg.HoneypotHandler != nil {
		for _, path := range slices.Sorted(maps.Keys(cfg.Honeypots)) {
			if err := cfg.HoneypotHandler.Register(router, path, cfg.Honeypots[path]); err != nil {
				return fmt.Errorf("failed to register honeypot %s: %w", path, err)
			}
		}
	}

	s.router = router
	return nil
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. SetupRouter must have been called.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized")
	}
	s.server.Handler = s.router
	return s.serve()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
			components[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	if status != http.StatusOK {
		c.JSON(status, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(status, gin.H{"status": "ready", "components": components})
}
