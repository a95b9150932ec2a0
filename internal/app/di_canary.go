package app

import (
	"fmt"

	"golang.org/x/time/rate"

	canaryHTTP "github.com/allisson/trustcore/internal/canary/http"
	canaryService "github.com/allisson/trustcore/internal/canary/service"
	canaryUseCase "github.com/allisson/trustcore/internal/canary/usecase"
)

// CanaryAlertSender returns the sender for CANARY_ALERT_URL, or nil when alerts are
// only logged.
func (c *Container) CanaryAlertSender() (*canaryService.AlertSender, error) {
	return c.canaryAlertSender.get(c.initCanaryAlertSender)
}

// CanaryRegistry returns the canary registry.
func (c *Container) CanaryRegistry() (canaryUseCase.Registry, error) {
	return c.canaryRegistry.get(c.initCanaryRegistry)
}

// HoneypotHandler returns the handler serving decoy routes.
func (c *Container) HoneypotHandler() (*canaryHTTP.HoneypotHandler, error) {
	return c.honeypotHandler.get(c.initHoneypotHandler)
}

func (c *Container) initCanaryAlertSender() (*canaryService.AlertSender, error) {
	if c.config.CanaryAlertURL == "" {
		return nil, nil
	}

	guard, err := c.OutboundGuard()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbound guard for canary alerts: %w", err)
	}
	return canaryService.NewAlertSender(guard, c.config.CanaryAlertURL, 0, c.Logger()), nil
}

func (c *Container) initCanaryRegistry() (canaryUseCase.Registry, error) {
	sender, err := c.CanaryAlertSender()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert sender for canary registry: %w", err)
	}
	attestationLog, err := c.AttestationLog()
	if err != nil {
		return nil, fmt.Errorf("failed to get attestation log for canary registry: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for canary registry: %w", err)
	}

	opts := canaryUseCase.Options{
		Recorder:   attestationLog,
		AlertRate:  rate.Limit(c.config.CanaryAlertRatePerSec),
		AlertBurst: c.config.CanaryAlertBurst,
	}
	if sender != nil {
		opts.Alert = sender.Alert
	}

	return canaryUseCase.NewRegistry([]byte(c.config.CanarySalt), opts, businessMetrics, c.Logger()), nil
}

func (c *Container) initHoneypotHandler() (*canaryHTTP.HoneypotHandler, error) {
	registry, err := c.CanaryRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get canary registry for honeypot handler: %w", err)
	}
	return canaryHTTP.NewHoneypotHandler(registry, c.Logger()), nil
}
