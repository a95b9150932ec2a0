// Package service delivers canary alerts to an external receiver.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	canaryDomain "github.com/allisson/trustcore/internal/canary/domain"
	apperrors "github.com/allisson/trustcore/internal/errors"
	outboundService "github.com/allisson/trustcore/internal/outbound/service"
)

// DefaultAlertTimeout bounds one alert delivery. Alerts are sent inline with the
// trigger, so this stays short.
const DefaultAlertTimeout = 5 * time.Second

// Fetcher performs SSRF-guarded outbound requests.
type Fetcher interface {
	SecureFetch(ctx context.Context, rawURL string, opts outboundService.FetchOptions) (*http.Response, error)
}

// AlertPayload is the JSON body posted for each canary trigger. The stack trace
// stays in the local logs.
type AlertPayload struct {
	Alert        string            `json:"alert"`
	CanaryID     string            `json:"canary_id"`
	FunctionPath string            `json:"function_path,omitempty"`
	Registered   bool              `json:"registered"`
	TriggeredAt  time.Time         `json:"triggered_at"`
	Context      map[string]string `json:"context,omitempty"`
}

// AlertSender posts canary triggers to a fixed URL through the outbound guard.
// Requests are signed with the guard's vendor secret for the receiver host.
type AlertSender struct {
	fetcher Fetcher
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAlertSender creates an AlertSender. A zero timeout uses DefaultAlertTimeout.
func NewAlertSender(fetcher Fetcher, url string, timeout time.Duration, logger *slog.Logger) *AlertSender {
	if timeout <= 0 {
		timeout = DefaultAlertTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertSender{fetcher: fetcher, url: url, timeout: timeout, logger: logger}
}

// Deliver posts trigger and fails on transport errors or non-2xx responses.
func (s *AlertSender) Deliver(ctx context.Context, trigger canaryDomain.Trigger) error {
	body, err := json.Marshal(AlertPayload{
		Alert:        "canary_triggered",
		CanaryID:     trigger.CanaryID,
		FunctionPath: trigger.FunctionPath,
		Registered:   trigger.Registered,
		TriggeredAt:  trigger.TriggeredAt,
		Context:      trigger.Context,
	})
	if err != nil {
		return fmt.Errorf("failed to encode canary alert: %w", err)
	}

	resp, err := s.fetcher.SecureFetch(ctx, s.url, outboundService.FetchOptions{
		Method:  http.MethodPost,
		Header:  http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
		Timeout: s.timeout,
		Sign:    true,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to send canary alert")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.Wrapf(apperrors.ErrUnavailable, "canary alert receiver returned %d", resp.StatusCode)
	}
	return nil
}

// Alert has the shape of the registry's alert callback. Delivery failures are logged.
func (s *AlertSender) Alert(ctx context.Context, trigger canaryDomain.Trigger) {
	if err := s.Deliver(ctx, trigger); err != nil {
		s.logger.Error("canary alert delivery failed",
			slog.String("alert", "canary_alert_failed"),
			slog.String("canary_id", trigger.CanaryID),
			slog.Any("error", err))
	}
}
