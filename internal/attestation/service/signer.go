package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
	"github.com/allisson/trustcore/internal/signature"
)

const (
	// RootSigningInfo is the HKDF info string for the root signing key.
	RootSigningInfo = "attestation-root-signing-v1"

	// MinSigningSecretSize is the minimum accepted input key material.
	MinSigningSecretSize = 32
)

// RootSigner signs DailyMerkleRoot records with HMAC-SHA256 under a key derived
// from a secret with HKDF-SHA256.
type RootSigner struct {
	keyID string
	key   []byte
}

// NewRootSigner derives the signing key from secret. An empty keyID is replaced by
// a fingerprint of the derived key.
func NewRootSigner(secret []byte, keyID string) (*RootSigner, error) {
	if len(secret) < MinSigningSecretSize {
		return nil, fmt.Errorf("attestation signing secret must be at least %d bytes", MinSigningSecretSize)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(RootSigningInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive attestation signing key: %w", err)
	}

	if keyID == "" {
		fp := sha256.Sum256(key)
		keyID = "hkdf:" + hex.EncodeToString(fp[:8])
	}
	return &RootSigner{keyID: keyID, key: key}, nil
}

// KeyID identifies the signing key in DailyMerkleRoot.SignedBy.
func (s *RootSigner) KeyID() string { return s.keyID }

// Sign sets SignedBy and Signature on root.
func (s *RootSigner) Sign(root *attestationDomain.DailyMerkleRoot) error {
	root.SignedBy = s.keyID
	input, err := signingInput(root)
	if err != nil {
		return err
	}
	root.Signature = signature.HMACSign(input, s.key)
	return nil
}

// Verify reports whether root carries a valid signature by this signer.
func (s *RootSigner) Verify(root *attestationDomain.DailyMerkleRoot) bool {
	if root == nil || root.SignedBy != s.keyID || root.Signature == "" {
		return false
	}
	input, err := signingInput(root)
	if err != nil {
		return false
	}
	return signature.HMACVerify(input, s.key, root.Signature)
}

// Close zeroes the signing key.
func (s *RootSigner) Close() {
	cryptoDomain.Zero(s.key)
}

// signingInput is the canonical JSON of root without its signature.
func signingInput(root *attestationDomain.DailyMerkleRoot) ([]byte, error) {
	r := *root
	r.Signature = ""
	r.ComputedAt = r.ComputedAt.UTC()
	return signature.Canonicalize(r)
}
