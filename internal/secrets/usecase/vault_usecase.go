package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	cryptoService "github.com/allisson/trustcore/internal/crypto/service"
	secretsDomain "github.com/allisson/trustcore/internal/secrets/domain"
)

// vaultUseCase implements VaultUseCase.
type vaultUseCase struct {
	kekProvider cryptoService.KEKProvider
	aeadManager cryptoService.AEADManager
	dekCache    *cryptoService.DekCache
	logger      *slog.Logger
	now         func() time.Time
}

// NewVaultUseCase creates a vault over kekProvider. The vault owns dekCache and closes
// it on Shutdown.
func NewVaultUseCase(
	kekProvider cryptoService.KEKProvider,
	aeadManager cryptoService.AEADManager,
	dekCache *cryptoService.DekCache,
	logger *slog.Logger,
) VaultUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &vaultUseCase{
		kekProvider: kekProvider,
		aeadManager: aeadManager,
		dekCache:    dekCache,
		logger:      logger,
		now:         time.Now,
	}
}

// EnvelopeEncrypt generates a fresh DEK, wraps it with kekRef and seals plaintext
// with AES-256-GCM. The DEK is zeroed before returning.
func (v *vaultUseCase) EnvelopeEncrypt(
	ctx context.Context,
	plaintext []byte,
	kekRef string,
) (*secretsDomain.EnvelopeEncryptedBlob, error) {
	if err := cryptoDomain.ValidateKekRef(kekRef); err != nil {
		return nil, err
	}

	dek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}
	defer cryptoDomain.Zero(dek)

	encryptedDEK, err := v.kekProvider.EncryptDEK(ctx, kekRef, dek)
	if err != nil {
		return nil, err
	}

	blob := &secretsDomain.EnvelopeEncryptedBlob{
		Version:      secretsDomain.EnvelopeVersion,
		KekRef:       kekRef,
		EncryptedDEK: encryptedDEK,
		Algorithm:    secretsDomain.EnvelopeAlgorithm,
		CreatedAt:    v.now().UTC(),
	}

	aead, err := v.aeadManager.CreateCipher(dek, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}
	sealed, iv, err := aead.Encrypt(plaintext, blob.AssociatedData())
	if err != nil {
		return nil, err
	}

	split := len(sealed) - cryptoDomain.TagSize
	blob.EncryptedBlob = sealed[:split:split]
	blob.AuthTag = sealed[split:]
	blob.IV = iv
	return blob, nil
}

// EnvelopeDecrypt validates blob, unwraps its DEK through the cache and opens the
// ciphertext. Authentication failure returns ErrDecryptionFailed and no plaintext.
func (v *vaultUseCase) EnvelopeDecrypt(
	ctx context.Context,
	blob *secretsDomain.EnvelopeEncryptedBlob,
) ([]byte, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.EncryptedBlob)+len(blob.AuthTag))
	sealed = append(sealed, blob.EncryptedBlob...)
	sealed = append(sealed, blob.AuthTag...)

	load := func(ctx context.Context) ([]byte, error) {
		return v.kekProvider.DecryptDEK(ctx, blob.KekRef, blob.EncryptedDEK)
	}

	var plaintext []byte
	cacheKey := cryptoDomain.DekCacheKey(blob.KekRef, blob.EncryptedDEK)
	err := v.dekCache.Use(ctx, cacheKey, load, func(dek []byte) error {
		aead, err := v.aeadManager.CreateCipher(dek, cryptoDomain.AESGCM)
		if err != nil {
			return err
		}
		plaintext, err = aead.Decrypt(sealed, blob.IV, blob.AssociatedData())
		return err
	})
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrDecryptionFailed) {
			v.logger.Warn("envelope authentication failed", slog.String("kek_ref", blob.KekRef))
		}
		return nil, err
	}
	return plaintext, nil
}

// RotateDEK decrypts blob and re-encrypts it under a fresh DEK. The old DEK is never
// reused and the intermediate plaintext is zeroed.
func (v *vaultUseCase) RotateDEK(
	ctx context.Context,
	blob *secretsDomain.EnvelopeEncryptedBlob,
	newKekRef string,
) (*secretsDomain.EnvelopeEncryptedBlob, error) {
	plaintext, err := v.EnvelopeDecrypt(ctx, blob)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(plaintext)

	if newKekRef == "" {
		newKekRef = blob.KekRef
	}
	return v.EnvelopeEncrypt(ctx, plaintext, newKekRef)
}

// Shutdown zeroizes the DEK cache.
func (v *vaultUseCase) Shutdown() {
	v.dekCache.Close()
}
