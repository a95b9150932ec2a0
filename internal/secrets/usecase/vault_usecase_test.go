package usecase

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	cryptoService "github.com/allisson/trustcore/internal/crypto/service"
	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestVault(t *testing.T, provider cryptoService.KEKProvider) VaultUseCase {
	t.Helper()
	vault := NewVaultUseCase(provider, cryptoService.NewAEADManager(), cryptoService.NewDekCache(time.Hour, nil), nil)
	t.Cleanup(vault.Shutdown)
	return vault
}

func newKeyringProvider(t *testing.T) *cryptoService.KeyringKEKProvider {
	t.Helper()
	keys := make([]*cryptoDomain.MasterKey, 0, 2)
	for _, id := range []string{"mk-1", "mk-2"} {
		key := make([]byte, cryptoDomain.KeySize)
		_, err := rand.Read(key)
		require.NoError(t, err)
		keys = append(keys, &cryptoDomain.MasterKey{ID: id, Key: key})
	}
	chain, err := cryptoDomain.NewMasterKeyChain("mk-1", keys...)
	require.NoError(t, err)
	return cryptoService.NewKeyringKEKProvider(chain, cryptoDomain.AESGCM, cryptoService.NewAEADManager())
}

func TestVault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	providers := map[string]cryptoService.KEKProvider{
		"xor":     &xorKEKProvider{},
		"keyring": newKeyringProvider(t),
	}

	plaintexts := [][]byte{
		[]byte("sk_live_51H8"),
		{},
		bytes.Repeat([]byte{0xAB}, 64*1024),
	}

	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			vault := newTestVault(t, provider)
			for _, p := range plaintexts {
				blob, err := vault.EnvelopeEncrypt(ctx, p, "mk-1")
				require.NoError(t, err)
				require.NoError(t, blob.Validate())
				assert.Equal(t, "mk-1", blob.KekRef)
				assert.Len(t, blob.IV, 12)
				assert.Len(t, blob.AuthTag, 16)
				assert.Len(t, blob.EncryptedBlob, len(p))

				out, err := vault.EnvelopeDecrypt(ctx, blob)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(p, out))
			}
		})
	}
}

func TestVault_FreshDEKPerEnvelope(t *testing.T) {
	ctx := context.Background()
	vault := newTestVault(t, &xorKEKProvider{})

	b1, err := vault.EnvelopeEncrypt(ctx, []byte("same"), "mk-1")
	require.NoError(t, err)
	b2, err := vault.EnvelopeEncrypt(ctx, []byte("same"), "mk-1")
	require.NoError(t, err)

	assert.NotEqual(t, b1.EncryptedDEK, b2.EncryptedDEK)
	assert.NotEqual(t, b1.IV, b2.IV)
}

func TestVault_TamperDetection(t *testing.T) {
	ctx := context.Background()
	vault := newTestVault(t, &xorKEKProvider{})

	original, err := vault.EnvelopeEncrypt(ctx, []byte("db password"), "mk-1")
	require.NoError(t, err)

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x01
		return out
	}

	tests := []struct {
		name   string
		mutate func(b *secretsDomain.EnvelopeEncryptedBlob)
	}{
		{name: "encrypted_blob first bit", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) { b.EncryptedBlob = flip(b.EncryptedBlob, 0) }},
		{name: "encrypted_blob last byte", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) {
			b.EncryptedBlob = flip(b.EncryptedBlob, len(b.EncryptedBlob)-1)
		}},
		{name: "auth_tag", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) { b.AuthTag = flip(b.AuthTag, 7) }},
		{name: "iv", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) { b.IV = flip(b.IV, 11) }},
		{name: "kek_ref swapped", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) { b.KekRef = "mk-2" }},
		{name: "encrypted_dek", mutate: func(b *secretsDomain.EnvelopeEncryptedBlob) { b.EncryptedDEK = flip(b.EncryptedDEK, 3) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := *original
			tt.mutate(&blob)

			out, err := vault.EnvelopeDecrypt(ctx, &blob)
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
			assert.Nil(t, out)
		})
	}

	t.Run("original still decrypts", func(t *testing.T) {
		out, err := vault.EnvelopeDecrypt(ctx, original)
		require.NoError(t, err)
		assert.Equal(t, []byte("db password"), out)
	})
}

func TestVault_InvalidEnvelopeRejectedBeforeUnwrap(t *testing.T) {
	ctx := context.Background()
	provider := &xorKEKProvider{}
	vault := newTestVault(t, provider)

	blob, err := vault.EnvelopeEncrypt(ctx, []byte("x"), "mk-1")
	require.NoError(t, err)
	blob.IV = blob.IV[:8]

	_, err = vault.EnvelopeDecrypt(ctx, blob)
	assert.ErrorIs(t, err, secretsDomain.ErrInvalidEnvelope)
	assert.Equal(t, int32(0), provider.decryptCalls.Load())
}

func TestVault_DecryptUsesDEKCache(t *testing.T) {
	ctx := context.Background()
	provider := &xorKEKProvider{}
	vault := newTestVault(t, provider)

	blob, err := vault.EnvelopeEncrypt(ctx, []byte("cached"), "mk-1")
	require.NoError(t, err)

	for range 5 {
		_, err := vault.EnvelopeDecrypt(ctx, blob)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), provider.decryptCalls.Load())
}

func TestVault_RotateDEK(t *testing.T) {
	ctx := context.Background()
	vault := newTestVault(t, newKeyringProvider(t))

	old, err := vault.EnvelopeEncrypt(ctx, []byte("rotate me"), "mk-1")
	require.NoError(t, err)

	t.Run("new kek ref", func(t *testing.T) {
		rotated, err := vault.RotateDEK(ctx, old, "mk-2")
		require.NoError(t, err)
		assert.Equal(t, "mk-2", rotated.KekRef)
		assert.NotEqual(t, old.EncryptedDEK, rotated.EncryptedDEK)

		out, err := vault.EnvelopeDecrypt(ctx, rotated)
		require.NoError(t, err)
		assert.Equal(t, []byte("rotate me"), out)
	})

	t.Run("empty ref keeps the old one with a fresh dek", func(t *testing.T) {
		rotated, err := vault.RotateDEK(ctx, old, "")
		require.NoError(t, err)
		assert.Equal(t, "mk-1", rotated.KekRef)
		assert.NotEqual(t, old.EncryptedDEK, rotated.EncryptedDEK)
	})

	t.Run("old envelope is untouched", func(t *testing.T) {
		out, err := vault.EnvelopeDecrypt(ctx, old)
		require.NoError(t, err)
		assert.Equal(t, []byte("rotate me"), out)
	})

	t.Run("tampered source cannot be rotated", func(t *testing.T) {
		bad := *old
		bad.AuthTag = append([]byte(nil), old.AuthTag...)
		bad.AuthTag[0] ^= 0xff
		_, err := vault.RotateDEK(ctx, &bad, "mk-2")
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}

func TestVault_EncryptErrors(t *testing.T) {
	ctx := context.Background()
	vault := newTestVault(t, newKeyringProvider(t))

	_, err := vault.EnvelopeEncrypt(ctx, []byte("x"), "")
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKekRef)

	_, err = vault.EnvelopeEncrypt(ctx, []byte("x"), "unknown")
	assert.ErrorIs(t, err, cryptoDomain.ErrKekNotFound)
}

type unavailableProvider struct{}

func (unavailableProvider) EncryptDEK(context.Context, string, []byte) ([]byte, error) {
	return nil, cryptoDomain.ErrKEKProviderUnavailable
}

func (unavailableProvider) DecryptDEK(context.Context, string, []byte) ([]byte, error) {
	return nil, cryptoDomain.ErrKEKProviderUnavailable
}

func TestVault_ProviderOutageIsRetryable(t *testing.T) {
	vault := newTestVault(t, unavailableProvider{})

	_, err := vault.EnvelopeEncrypt(context.Background(), []byte("x"), "mk-1")
	assert.ErrorIs(t, err, cryptoDomain.ErrKEKProviderUnavailable)
}

func TestVault_ShutdownZeroizesAndRefuses(t *testing.T) {
	ctx := context.Background()
	vault := NewVaultUseCase(&xorKEKProvider{}, cryptoService.NewAEADManager(), cryptoService.NewDekCache(time.Hour, nil), nil)

	blob, err := vault.EnvelopeEncrypt(ctx, []byte("bye"), "mk-1")
	require.NoError(t, err)
	_, err = vault.EnvelopeDecrypt(ctx, blob)
	require.NoError(t, err)

	vault.Shutdown()

	_, err = vault.EnvelopeDecrypt(ctx, blob)
	assert.True(t, errors.Is(err, cryptoDomain.ErrCacheClosed))
}
