package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/trustcore/internal/app"
	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/config"
)

// RunServer starts the ingress server, the metrics server and the background tasks
// (nonce purging and the attestation day rollover). It blocks until SIGINT/SIGTERM
// or until any of them fails, then shuts the container down within
// SHUTDOWN_TIMEOUT_SECONDS so cached DEKs are zeroized and KMS keepers closed.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Initializing the HTTP server builds every dependency up front.
	server, err := container.HTTPServer()
	if err != nil {
		closeContainer(container, logger)
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		closeContainer(container, logger)
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	attestationLog, err := container.AttestationLog()
	if err != nil {
		closeContainer(container, logger)
		return fmt.Errorf("failed to initialize attestation log: %w", err)
	}
	nonceStore := container.NonceStore()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		nonceStore.Run(gctx, cfg.WebhookNoncePurgeInterval)
		return nil
	})
	g.Go(func() error {
		if err := attestationLog.Run(gctx); err != nil && !errors.Is(err, attestationDomain.ErrLogClosed) {
			return fmt.Errorf("attestation log error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("background task failed, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		// Checkpoint today's events; the log itself does not persist them on shutdown.
		if root, err := attestationLog.Flush(shutdownCtx); err != nil {
			logger.Error("failed to checkpoint attestation day", slog.Any("error", err))
		} else {
			logger.Info("attestation day checkpointed",
				slog.String("date", root.Date),
				slog.Int("event_count", root.EventCount))
		}
		return container.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
