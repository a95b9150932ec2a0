package usecase

import (
	"context"
	"crypto/sha256"
	"sync/atomic"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// xorKEKProvider is a reversible stand-in for a real KMS. It lives in a _test.go file
// so it is never compiled into a binary.
type xorKEKProvider struct {
	decryptCalls atomic.Int32
}

func (p *xorKEKProvider) pad(kekRef string) []byte {
	sum := sha256.Sum256([]byte("xor-test-kek|" + kekRef))
	return sum[:]
}

func (p *xorKEKProvider) EncryptDEK(_ context.Context, kekRef string, dek []byte) ([]byte, error) {
	if len(dek) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	pad := p.pad(kekRef)
	out := make([]byte, len(dek))
	for i := range dek {
		out[i] = dek[i] ^ pad[i]
	}
	return out, nil
}

func (p *xorKEKProvider) DecryptDEK(_ context.Context, kekRef string, encryptedDEK []byte) ([]byte, error) {
	p.decryptCalls.Add(1)
	if len(encryptedDEK) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	pad := p.pad(kekRef)
	out := make([]byte, len(encryptedDEK))
	for i := range encryptedDEK {
		out[i] = encryptedDEK[i] ^ pad[i]
	}
	return out, nil
}
