package usecase

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/allisson/trustcore/internal/signature"
	webhookDomain "github.com/allisson/trustcore/internal/webhook/domain"
)

type verifier struct {
	nonces NonceStore
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewVerifier creates a Verifier. A zero window means webhookDomain.DefaultReplayWindow.
func NewVerifier(nonces NonceStore, window time.Duration, logger *slog.Logger) Verifier {
	if window <= 0 {
		window = webhookDomain.DefaultReplayWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &verifier{nonces: nonces, window: window, now: time.Now, logger: logger}
}

func (v *verifier) Verify(ctx context.Context, req webhookDomain.Request) (bool, error) {
	return v.VerifyWithWindow(ctx, req, v.window)
}

// VerifyWithWindow runs the checks in a fixed order: presence, timestamp format,
// freshness, nonce, signature. The nonce is consumed before the signature is
// checked, so a failed attempt burns its nonce.
func (v *verifier) VerifyWithWindow(
	_ context.Context,
	req webhookDomain.Request,
	window time.Duration,
) (bool, error) {
	if window <= 0 {
		window = v.window
	}

	switch {
	case req.Signature == "":
		return false, v.reject(webhookDomain.NewMissingHeaders("signature"))
	case req.Timestamp == "":
		return false, v.reject(webhookDomain.NewMissingHeaders("timestamp"))
	case req.Nonce == "":
		return false, v.reject(webhookDomain.NewMissingHeaders("nonce"))
	case len(req.Secret) == 0:
		return false, v.reject(webhookDomain.NewMissingHeaders("secret"))
	}

	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return false, v.reject(webhookDomain.NewInvalidTimestamp(req.Timestamp))
	}

	now := v.now()
	skew := absDiff(now.UnixMilli(), ts)
	if skew > window.Milliseconds() {
		return false, v.reject(webhookDomain.NewReplayWindowExceeded(skew, window.Milliseconds()))
	}

	if !v.nonces.CheckAndStore(req.Nonce, now, now.Add(window)) {
		return false, v.reject(webhookDomain.NewNonceReused())
	}

	if !signature.HMACVerify(req.SigningInput(), req.Secret, req.Signature) {
		return false, v.reject(webhookDomain.NewInvalidSignature())
	}

	return true, nil
}

// absDiff returns |a-b|, saturating at math.MaxInt64.
func absDiff(a, b int64) int64 {
	if a < b {
		a, b = b, a
	}
	d := uint64(a) - uint64(b)
	if d > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d)
}

func (v *verifier) reject(err error) error {
	v.logger.Warn("webhook rejected", slog.String("error", err.Error()))
	return err
}
