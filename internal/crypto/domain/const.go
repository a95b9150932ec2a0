package domain

// Algorithm represents an AEAD algorithm used for data or key wrapping.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted data.
//
// Envelope payloads are always sealed with AESGCM. ChaCha20 is only offered as a
// wrapping algorithm for self-hosted keyring KEK providers running on hardware without
// AES-NI.
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// Sizes shared by every AEAD primitive in this module.
const (
	// KeySize is the size in bytes of every DEK, KEK and master key.
	KeySize = 32

	// NonceSize is the IV size for AES-256-GCM and ChaCha20-Poly1305.
	NonceSize = 12

	// TagSize is the authentication tag size for both AEAD algorithms.
	TagSize = 16
)

// ParseAlgorithm converts a configuration string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
