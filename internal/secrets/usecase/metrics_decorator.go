package usecase

import (
	"context"
	"time"

	"github.com/allisson/trustcore/internal/metrics"
	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
)

// vaultUseCaseWithMetrics decorates VaultUseCase with metrics instrumentation.
type vaultUseCaseWithMetrics struct {
	next    VaultUseCase
	metrics metrics.BusinessMetrics
}

// NewVaultUseCaseWithMetrics wraps a VaultUseCase with metrics recording.
func NewVaultUseCaseWithMetrics(useCase VaultUseCase, m metrics.BusinessMetrics) VaultUseCase {
	return &vaultUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (v *vaultUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	v.metrics.RecordOperation(ctx, "secrets", operation, status)
	v.metrics.RecordDuration(ctx, "secrets", operation, time.Since(start), status)
}

// EnvelopeEncrypt records metrics for envelope encryption.
func (v *vaultUseCaseWithMetrics) EnvelopeEncrypt(
	ctx context.Context,
	plaintext []byte,
	kekRef string,
) (*secretsDomain.EnvelopeEncryptedBlob, error) {
	start := time.Now()
	blob, err := v.next.EnvelopeEncrypt(ctx, plaintext, kekRef)
	v.record(ctx, "envelope_encrypt", start, err)
	return blob, err
}

// EnvelopeDecrypt records metrics for envelope decryption.
func (v *vaultUseCaseWithMetrics) EnvelopeDecrypt(
	ctx context.Context,
	blob *secretsDomain.EnvelopeEncryptedBlob,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := v.next.EnvelopeDecrypt(ctx, blob)
	v.record(ctx, "envelope_decrypt", start, err)
	return plaintext, err
}

// RotateDEK records metrics for DEK rotation.
func (v *vaultUseCaseWithMetrics) RotateDEK(
	ctx context.Context,
	blob *secretsDomain.EnvelopeEncryptedBlob,
	newKekRef string,
) (*secretsDomain.EnvelopeEncryptedBlob, error) {
	start := time.Now()
	rotated, err := v.next.RotateDEK(ctx, blob, newKekRef)
	v.record(ctx, "rotate_dek", start, err)
	return rotated, err
}

// Shutdown delegates to the wrapped use case.
func (v *vaultUseCaseWithMetrics) Shutdown() {
	v.next.Shutdown()
}
