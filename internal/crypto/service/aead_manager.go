package service

import (
	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

var cipherFactories = map[cryptoDomain.Algorithm]func(key []byte) (AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (AEAD, error) {
		return NewAESGCM(key)
	},
	cryptoDomain.ChaCha20: func(key []byte) (AEAD, error) {
		return NewChaCha20Poly1305(key)
	},
}

// AEADManagerService builds ciphers for the algorithms a DEK or KEK may be used with.
type AEADManagerService struct{}

// NewAEADManager creates an AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns a cipher for alg keyed with key. Unknown algorithms fail with
// ErrUnsupportedAlgorithm before the key is looked at.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	factory, ok := cipherFactories[alg]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	return factory(key)
}
