// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	attestationHTTP "github.com/allisson/trustcore/internal/attestation/http"
	attestationService "github.com/allisson/trustcore/internal/attestation/service"
	attestationUseCase "github.com/allisson/trustcore/internal/attestation/usecase"
	canaryHTTP "github.com/allisson/trustcore/internal/canary/http"
	canaryService "github.com/allisson/trustcore/internal/canary/service"
	canaryUseCase "github.com/allisson/trustcore/internal/canary/usecase"
	"github.com/allisson/trustcore/internal/config"
	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	cryptoService "github.com/allisson/trustcore/internal/crypto/service"
	"github.com/allisson/trustcore/internal/database"
	"github.com/allisson/trustcore/internal/http"
	licenseService "github.com/allisson/trustcore/internal/license/service"
	"github.com/allisson/trustcore/internal/metrics"
	outboundService "github.com/allisson/trustcore/internal/outbound/service"
	secretsUseCase "github.com/allisson/trustcore/internal/secrets/usecase"
	webhookHTTP "github.com/allisson/trustcore/internal/webhook/http"
	webhookService "github.com/allisson/trustcore/internal/webhook/service"
	webhookUseCase "github.com/allisson/trustcore/internal/webhook/usecase"
)

// Container builds application components on first access and releases them on
// Shutdown. Getters are safe for concurrent use.
type Container struct {
	config *config.Config

	logger          lazy[*slog.Logger]
	db              lazy[*sql.DB]
	txManager       lazy[database.TxManager]
	metricsProvider lazy[*metrics.Provider]
	businessMetrics lazy[metrics.BusinessMetrics]

	kmsService     lazy[cryptoService.KMSService]
	aeadManager    lazy[cryptoService.AEADManager]
	masterKeyChain lazy[*cryptoDomain.MasterKeyChain]
	kekProvider    lazy[cryptoService.KEKProvider]
	dekCache       lazy[*cryptoService.DekCache]
	vault          lazy[secretsUseCase.VaultUseCase]

	nonceStore      lazy[*webhookService.NonceStore]
	webhookVerifier lazy[webhookUseCase.Verifier]
	webhookSecrets  lazy[webhookHTTP.SecretMap]
	webhookHandler  lazy[*webhookHTTP.WebhookHandler]
	outboundGuard   lazy[*outboundService.Guard]

	licenseVerifier lazy[*licenseService.Verifier]
	licenseGate     lazy[*licenseService.Gate]

	rootSigner         lazy[*attestationService.RootSigner]
	rootRepository     lazy[attestationUseCase.RootRepository]
	attestationLog     lazy[attestationUseCase.AttestationLog]
	attestationHandler lazy[*attestationHTTP.AttestationHandler]

	canaryAlertSender lazy[*canaryService.AlertSender]
	canaryRegistry    lazy[canaryUseCase.Registry]
	honeypotHandler   lazy[*canaryHTTP.HoneypotHandler]

	httpServer    lazy[*http.Server]
	metricsServer lazy[*http.MetricsServer]

	shutdownMu sync.Mutex
}

// NewContainer creates a container for cfg. Nothing is built until asked for.
func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger at LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	return c.logger.must(c.initLogger)
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(c.initDB)
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	return c.txManager.get(c.initTxManager)
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return c.metricsProvider.get(c.initMetricsProvider)
}

// BusinessMetrics returns the business metrics recorder. It records nothing when
// metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return c.businessMetrics.get(c.initBusinessMetrics)
}

// HTTPServer returns the ingress HTTP server with its router set up.
func (c *Container) HTTPServer() (*http.Server, error) {
	return c.httpServer.get(c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return c.metricsServer.get(c.initMetricsServer)
}

// Shutdown releases what was built, in dependency order: servers stop accepting
// work, the attestation log flushes, key material is zeroed and KMS keepers close,
// then metrics and the database go. Components never built are skipped.
func (c *Container) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()

	var errs []error
	collect := func(what string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	if srv, ok := c.httpServer.peek(); ok && srv != nil {
		collect("http server shutdown", srv.Shutdown(ctx))
	}
	if srv, ok := c.metricsServer.peek(); ok && srv != nil {
		collect("metrics server shutdown", srv.Shutdown(ctx))
	}
	if log, ok := c.attestationLog.peek(); ok {
		collect("attestation log shutdown", log.Shutdown(ctx))
	}

	// The vault owns the DEK cache.
	if vault, ok := c.vault.peek(); ok {
		vault.Shutdown()
	} else if cache, ok := c.dekCache.peek(); ok {
		cache.Close()
	}
	if provider, ok := c.kekProvider.peek(); ok {
		if closer, ok := provider.(interface{ Close() error }); ok {
			collect("kek provider close", closer.Close())
		}
	}
	if chain, ok := c.masterKeyChain.peek(); ok {
		chain.Close()
	}
	if signer, ok := c.rootSigner.peek(); ok {
		signer.Close()
	}

	if provider, ok := c.metricsProvider.peek(); ok && provider != nil {
		collect("metrics provider shutdown", provider.Shutdown(ctx))
	}
	if db, ok := c.db.peek(); ok {
		collect("database close", db.Close())
	}

	return errors.Join(errs...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	attrs := []attribute.KeyValue{attribute.String("build_hash", c.config.BuildHash)}
	if c.config.ImageDigest != "" {
		attrs = append(attrs, attribute.String("image_digest", c.config.ImageDigest))
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the ingress server and sets up its router.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	verifier, err := c.WebhookVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook verifier for http server: %w", err)
	}
	secrets, err := c.WebhookSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook secrets for http server: %w", err)
	}
	webhookHandler, err := c.WebhookHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook handler for http server: %w", err)
	}
	attestationHandler, err := c.AttestationHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get attestation handler for http server: %w", err)
	}
	honeypotHandler, err := c.HoneypotHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get honeypot handler for http server: %w", err)
	}
	honeypots, err := canaryHTTP.ParseHoneypots(c.config.CanaryHoneypots)
	if err != nil {
		return nil, fmt.Errorf("failed to parse honeypot routes: %w", err)
	}
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	routerCfg := http.RouterConfig{
		WebhookVerifier:    verifier,
		WebhookSecrets:     secrets,
		WebhookHandler:     webhookHandler,
		AttestationHandler: attestationHandler,
		HoneypotHandler:    honeypotHandler,
		Honeypots:          honeypots,
		MetricsProvider:    metricsProvider,
		MetricsNamespace:   c.config.MetricsNamespace,
		CORSEnabled:        c.config.CORSEnabled,
		CORSAllowOrigins:   c.config.CORSAllowOrigins,

		WebhookRateLimitRPS:   c.config.WebhookRateLimitRPS,
		WebhookRateLimitBurst: c.config.WebhookRateLimitBurst,
	}

	gate, err := c.LicenseGate()
	if err != nil {
		return nil, fmt.Errorf("failed to get license gate for http server: %w", err)
	}
	if gate != nil {
		routerCfg.LicenseGate = gate
	}

	server := http.NewServer(c.config.ServerHost, c.config.ServerPort, logger)
	if err := c.addReadinessChecks(server); err != nil {
		return nil, err
	}
	if err := server.SetupRouter(routerCfg); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	return server, nil
}

// addReadinessChecks registers a check for the attestation storage in use.
func (c *Container) addReadinessChecks(server *http.Server) error {
	switch c.config.AttestationStorage {
	case config.AttestationStorageDatabase:
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for readiness check: %w", err)
		}
		server.AddReadinessCheck("database", db.PingContext)
	default:
		dir := c.config.AttestationDir
		server.AddReadinessCheck("attestation_dir", func(context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return nil
		})
	}
	return nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
