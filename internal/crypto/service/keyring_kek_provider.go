package service

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// KeyringKEKProvider is a self-hosted KEKProvider backed by a MasterKeyChain. The
// kek_ref is the master key ID, and a wrapped DEK is nonce || AEAD(masterKey, dek)
// with the kek_ref as associated data.
type KeyringKEKProvider struct {
	chain       *cryptoDomain.MasterKeyChain
	alg         cryptoDomain.Algorithm
	aeadManager AEADManager
}

// NewKeyringKEKProvider creates a provider over chain wrapping with alg.
func NewKeyringKEKProvider(
	chain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
	aeadManager AEADManager,
) *KeyringKEKProvider {
	return &KeyringKEKProvider{chain: chain, alg: alg, aeadManager: aeadManager}
}

// ActiveKekRef returns the reference new envelopes should use.
func (p *KeyringKEKProvider) ActiveKekRef() string {
	return p.chain.ActiveMasterKeyID()
}

func (p *KeyringKEKProvider) cipherFor(kekRef string) (AEAD, error) {
	if err := cryptoDomain.ValidateKekRef(kekRef); err != nil {
		return nil, err
	}
	mk, ok := p.chain.Get(kekRef)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrKekNotFound, kekRef)
	}
	return p.aeadManager.CreateCipher(mk.Key, p.alg)
}

// EncryptDEK wraps dek under the master key kekRef.
func (p *KeyringKEKProvider) EncryptDEK(_ context.Context, kekRef string, dek []byte) ([]byte, error) {
	if len(dek) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	aead, err := p.cipherFor(kekRef)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := aead.Encrypt(dek, []byte(kekRef))
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// DecryptDEK unwraps encryptedDEK under the master key kekRef.
func (p *KeyringKEKProvider) DecryptDEK(
	_ context.Context,
	kekRef string,
	encryptedDEK []byte,
) ([]byte, error) {
	aead, err := p.cipherFor(kekRef)
	if err != nil {
		return nil, err
	}
	if len(encryptedDEK) < cryptoDomain.NonceSize+cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	dek, err := aead.Decrypt(
		encryptedDEK[cryptoDomain.NonceSize:],
		encryptedDEK[:cryptoDomain.NonceSize],
		[]byte(kekRef),
	)
	if err != nil {
		return nil, err
	}
	if len(dek) != cryptoDomain.KeySize {
		cryptoDomain.Zero(dek)
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return dek, nil
}

// Close zeroes the master keys.
func (p *KeyringKEKProvider) Close() error {
	p.chain.Close()
	return nil
}
