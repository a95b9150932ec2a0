package usecase

import (
	"context"
	"fmt"

	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
)

// Seal encrypts plaintext under kekRef and renders it as a sealed configuration value.
func Seal(ctx context.Context, vault VaultUseCase, plaintext []byte, kekRef string) (string, error) {
	blob, err := vault.EnvelopeEncrypt(ctx, plaintext, kekRef)
	if err != nil {
		return "", err
	}
	return secretsDomain.EncodeSealed(blob)
}

// Unseal returns the secret held by value. Plain values are returned as is; sealed
// values are decrypted with vault, which may be nil only when nothing is sealed.
func Unseal(ctx context.Context, vault VaultUseCase, value string) ([]byte, error) {
	if !secretsDomain.IsSealed(value) {
		return []byte(value), nil
	}
	if vault == nil {
		return nil, fmt.Errorf("%w: sealed value but no vault configured", secretsDomain.ErrInvalidEnvelope)
	}
	blob, err := secretsDomain.DecodeSealed(value)
	if err != nil {
		return nil, err
	}
	return vault.EnvelopeDecrypt(ctx, blob)
}

// UnsealMap returns the unsealed values of m under the same keys.
func UnsealMap(ctx context.Context, vault VaultUseCase, m map[string]string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		secret, err := Unseal(ctx, vault, v)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal %s: %w", k, err)
		}
		out[k] = secret
	}
	return out, nil
}
