package usecase

import (
	"context"
	"time"

	"github.com/allisson/trustcore/internal/metrics"
	webhookDomain "github.com/allisson/trustcore/internal/webhook/domain"
)

// verifierWithMetrics decorates Verifier with metrics instrumentation.
type verifierWithMetrics struct {
	next    Verifier
	metrics metrics.BusinessMetrics
}

// NewVerifierWithMetrics wraps a Verifier with metrics recording. Rejections are
// recorded with the error code as status.
func NewVerifierWithMetrics(v Verifier, m metrics.BusinessMetrics) Verifier {
	return &verifierWithMetrics{next: v, metrics: m}
}

func (v *verifierWithMetrics) Verify(ctx context.Context, req webhookDomain.Request) (bool, error) {
	start := time.Now()
	ok, err := v.next.Verify(ctx, req)
	v.record(ctx, start, err)
	return ok, err
}

func (v *verifierWithMetrics) VerifyWithWindow(
	ctx context.Context,
	req webhookDomain.Request,
	window time.Duration,
) (bool, error) {
	start := time.Now()
	ok, err := v.next.VerifyWithWindow(ctx, req, window)
	v.record(ctx, start, err)
	return ok, err
}

func (v *verifierWithMetrics) record(ctx context.Context, start time.Time, err error) {
	status := metrics.StatusOf(err)
	v.metrics.RecordOperation(ctx, "webhook", "verify", status)
	v.metrics.RecordDuration(ctx, "webhook", "verify", time.Since(start), status)
}
