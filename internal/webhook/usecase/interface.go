// Package usecase verifies inbound webhooks: signature, freshness and nonce uniqueness.
package usecase

import (
	"context"
	"time"

	webhookDomain "github.com/allisson/trustcore/internal/webhook/domain"
)

// NonceStore records nonces for replay protection. now is the verifier's clock.
type NonceStore interface {
	CheckAndStore(nonce string, now, expiry time.Time) bool
}

// Verifier authenticates inbound webhook calls.
type Verifier interface {
	// Verify checks req against the default replay window. It returns true or a
	// *webhookDomain.VerificationError.
	Verify(ctx context.Context, req webhookDomain.Request) (bool, error)

	// VerifyWithWindow is Verify with a caller supplied replay window.
	VerifyWithWindow(ctx context.Context, req webhookDomain.Request, window time.Duration) (bool, error)
}
