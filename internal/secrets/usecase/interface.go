// Package usecase implements envelope encryption of secrets at rest.
package usecase

import (
	"context"

	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
)

// VaultUseCase encrypts and decrypts secrets with per-envelope DEKs wrapped by a KEK provider.
type VaultUseCase interface {
	// EnvelopeEncrypt encrypts plaintext under a fresh DEK wrapped by kekRef.
	EnvelopeEncrypt(ctx context.Context, plaintext []byte, kekRef string) (*secretsDomain.EnvelopeEncryptedBlob, error)

	// EnvelopeDecrypt returns the plaintext of blob.
	//
	// Security Note: callers MUST zero the returned slice after use by calling
	// cryptoDomain.Zero.
	EnvelopeDecrypt(ctx context.Context, blob *secretsDomain.EnvelopeEncryptedBlob) ([]byte, error)

	// RotateDEK re-encrypts blob under a fresh DEK. An empty newKekRef keeps blob's kek_ref.
	RotateDEK(
		ctx context.Context,
		blob *secretsDomain.EnvelopeEncryptedBlob,
		newKekRef string,
	) (*secretsDomain.EnvelopeEncryptedBlob, error)

	// Shutdown zeroizes every cached DEK. It is synchronous.
	Shutdown()
}
