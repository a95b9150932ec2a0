package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// AESGCMCipher implements AEAD using AES-256-GCM with a random 12-byte nonce per call
// and a 16-byte tag appended to the ciphertext.
//
// The cipher is stateless and safe for concurrent use.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce, authenticating aad.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	return seal(a.aead, plaintext, aad)
}

// Decrypt opens ciphertext (tag suffixed) with nonce and aad.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	return open(a.aead, ciphertext, nonce, aad)
}

func seal(aead cipher.AEAD, plaintext, aad []byte) ([]byte, []byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// open never lets a malformed nonce reach cipher.AEAD.Open, which panics on it.
func open(aead cipher.AEAD, ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != aead.NonceSize() || len(ciphertext) < aead.Overhead() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
