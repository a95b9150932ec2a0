package domain

import (
	"github.com/allisson/trustcore/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// to provide context for cryptographic failures.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	//
	// All keys (master keys, KEKs, and DEKs) must be exactly 32 bytes (256 bits).
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates a decryption operation failed.
	//
	// This error can occur due to:
	//   - Wrong decryption key used
	//   - Ciphertext, IV or authentication tag has been tampered with
	//   - Corrupted encrypted data
	//
	// The specific cause is not disclosed. No partial plaintext is ever returned
	// alongside this error.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidKekRef indicates an empty or malformed KEK reference.
	ErrInvalidKekRef = errors.Wrap(errors.ErrInvalidInput, "invalid kek reference")

	// ErrKekNotFound indicates the KEK provider has no key for the reference.
	ErrKekNotFound = errors.Wrap(errors.ErrNotFound, "kek not found")

	// ErrKEKProviderUnavailable indicates the KMS/Vault backing a KEK provider could not be reached.
	ErrKEKProviderUnavailable = errors.Wrap(errors.ErrUnavailable, "kek provider unavailable")

	// ErrCacheClosed indicates the DEK cache was used after shutdown.
	ErrCacheClosed = errors.New("dek cache closed")

	// ErrMasterKeysNotSet indicates MASTER_KEYS is empty.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "MASTER_KEYS not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is empty.
	ErrActiveMasterKeyIDNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_MASTER_KEY_ID not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not "id:base64key".
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key could not be base64 decoded.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID is not present in MASTER_KEYS.
	ErrActiveMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "active master key not found")
)
