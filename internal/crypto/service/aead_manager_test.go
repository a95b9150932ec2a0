package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()
	validKey := randomKey(t)

	tests := []struct {
		name    string
		key     []byte
		alg     cryptoDomain.Algorithm
		wantErr error
	}{
		{name: "aes-gcm", key: validKey, alg: cryptoDomain.AESGCM},
		{name: "chacha20-poly1305", key: validKey, alg: cryptoDomain.ChaCha20},
		{name: "unsupported algorithm", key: validKey, alg: "unsupported", wantErr: cryptoDomain.ErrUnsupportedAlgorithm},
		{name: "unsupported algorithm checked before key", key: nil, alg: "des", wantErr: cryptoDomain.ErrUnsupportedAlgorithm},
		{name: "short key", key: make([]byte, 16), alg: cryptoDomain.AESGCM, wantErr: cryptoDomain.ErrInvalidKeySize},
		{name: "long key", key: make([]byte, 64), alg: cryptoDomain.AESGCM, wantErr: cryptoDomain.ErrInvalidKeySize},
		{name: "nil key", key: nil, alg: cryptoDomain.ChaCha20, wantErr: cryptoDomain.ErrInvalidKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aead, err := manager.CreateCipher(tt.key, tt.alg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, aead)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, aead)
		})
	}
}

func TestAEAD_RoundTripAndTamper(t *testing.T) {
	manager := NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			aead, err := manager.CreateCipher(randomKey(t), alg)
			require.NoError(t, err)

			plaintext := []byte("vendor api token")
			aad := []byte("kek-1")

			ciphertext, nonce, err := aead.Encrypt(plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, nonce, cryptoDomain.NonceSize)
			assert.Len(t, ciphertext, len(plaintext)+cryptoDomain.TagSize)

			decrypted, err := aead.Decrypt(ciphertext, nonce, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)

			t.Run("nonces are unique", func(t *testing.T) {
				_, nonce2, err := aead.Encrypt(plaintext, aad)
				require.NoError(t, err)
				assert.NotEqual(t, nonce, nonce2)
			})

			t.Run("wrong aad", func(t *testing.T) {
				out, err := aead.Decrypt(ciphertext, nonce, []byte("kek-2"))
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
				assert.Nil(t, out)
			})

			t.Run("flipped ciphertext bit", func(t *testing.T) {
				tampered := append([]byte(nil), ciphertext...)
				tampered[0] ^= 0x01
				out, err := aead.Decrypt(tampered, nonce, aad)
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
				assert.Nil(t, out)
			})

			t.Run("short nonce does not panic", func(t *testing.T) {
				out, err := aead.Decrypt(ciphertext, nonce[:4], aad)
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
				assert.Nil(t, out)
			})

			t.Run("truncated ciphertext", func(t *testing.T) {
				out, err := aead.Decrypt(ciphertext[:3], nonce, aad)
				assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
				assert.Nil(t, out)
			})
		})
	}
}
