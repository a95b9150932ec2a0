package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/trustcore/internal/errors"
)

// assertBizMetricLine checks that the Prometheus output contains a metric with the
// given name, partial label pattern and value. Labels are matched by regex because
// the exporter injects OTel scope labels.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

type codedError struct{ code apperrors.Code }

func (e *codedError) Error() string             { return string(e.code) }
func (e *codedError) ErrorCode() apperrors.Code { return e.code }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: StatusSuccess},
		{name: "coded", err: &codedError{code: "NONCE_REUSED"}, want: "nonce_reused"},
		{name: "wrapped coded", err: fmt.Errorf("verify: %w", &codedError{code: "BLOCKED_IP"}), want: "blocked_ip"},
		{name: "transient", err: apperrors.Wrap(apperrors.ErrUnavailable, "kms down"), want: StatusUnavailable},
		{name: "plain", err: errors.New("boom"), want: StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestBusinessMetrics_Export(t *testing.T) {
	provider, err := NewProvider("trustcore_test")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "trustcore_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "webhook", "verify", StatusSuccess)
	bm.RecordOperation(ctx, "webhook", "verify", StatusSuccess)
	bm.RecordOperation(ctx, "webhook", "verify", "nonce_reused")
	bm.RecordOperation(ctx, "secrets", "envelope_decrypt", StatusUnavailable)
	bm.RecordOperation(ctx, "canary", "trigger", "triggered")

	bm.RecordDuration(ctx, "webhook", "verify", 300*time.Microsecond, StatusSuccess)
	bm.RecordDuration(ctx, "webhook", "verify", 2*time.Millisecond, StatusSuccess)
	bm.RecordDuration(ctx, "secrets", "envelope_decrypt", 4*time.Second, StatusUnavailable)

	output := scrape(t, provider)

	assertBizMetricLine(t, output, `trustcore_test_operations_total`,
		`domain="webhook".*operation="verify".*status="success"`, `2`)
	assertBizMetricLine(t, output, `trustcore_test_operations_total`,
		`domain="webhook".*operation="verify".*status="nonce_reused"`, `1`)
	assertBizMetricLine(t, output, `trustcore_test_operations_total`,
		`domain="canary".*operation="trigger".*status="triggered"`, `1`)
	assertBizMetricLine(t, output, `trustcore_test_operation_duration_seconds_count`,
		`domain="webhook".*operation="verify".*status="success"`, `2`)
	// sub-millisecond HMAC checks land in the first bucket
	assertBizMetricLine(t, output, `trustcore_test_operation_duration_seconds_bucket`,
		`domain="webhook".*le="0.0005"`, `1`)
	assertBizMetricLine(t, output, `trustcore_test_operation_duration_seconds_bucket`,
		`domain="secrets".*le="5"`, `1`)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	bm := NewNoOpBusinessMetrics()
	assert.IsType(t, &NoOpBusinessMetrics{}, bm)

	assert.NotPanics(t, func() {
		bm.RecordOperation(context.Background(), "attestation", "flush", StatusSuccess)
		bm.RecordDuration(context.Background(), "attestation", "flush", time.Millisecond, StatusError)
	})
}
