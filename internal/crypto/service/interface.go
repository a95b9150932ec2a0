// Package service provides the cryptographic building blocks of the secrets vault:
// AEAD ciphers, Key-Encryption-Key providers and the in-process DEK cache.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	// The ciphertext carries the 16-byte authentication tag as its suffix.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD. Any authentication
	// failure is reported as cryptoDomain.ErrDecryptionFailed with no plaintext.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KEKProvider wraps and unwraps Data Encryption Keys with a Key Encryption Key that
// never leaves the provider. kekRef names the KEK; its meaning is provider specific.
//
// Implementations must be safe for concurrent use. Transient backend failures are
// reported as errors wrapping cryptoDomain.ErrKEKProviderUnavailable so callers can
// retry; a wrapped DEK that fails authentication yields cryptoDomain.ErrDecryptionFailed.
type KEKProvider interface {
	EncryptDEK(ctx context.Context, kekRef string, dek []byte) ([]byte, error)
	DecryptDEK(ctx context.Context, kekRef string, encryptedDEK []byte) ([]byte, error)
}

// Keeper is the subset of *secrets.Keeper used by the KMS KEK provider.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens keepers for KMS key URIs.
type KMSService interface {
	// OpenKeeper opens a keeper for the key URI (gcpkms://, awskms://, azurekeyvault://,
	// hashivault://, base64key://).
	OpenKeeper(ctx context.Context, keyURI string) (Keeper, error)
}
