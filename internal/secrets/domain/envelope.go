// Package domain defines the envelope format used to store secrets at rest.
//
// An envelope holds a secret encrypted with a per-envelope Data Encryption Key (DEK)
// and that DEK wrapped by a Key Encryption Key (KEK) which never leaves its provider.
// Envelopes are immutable: rotation always produces a new envelope.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// EnvelopeVersion is the only envelope format version produced and accepted.
	EnvelopeVersion = 1

	// EnvelopeAlgorithm is the data encryption algorithm recorded in every envelope.
	EnvelopeAlgorithm = "AES-256-GCM"

	ivSize      = 12
	authTagSize = 16
)

// EnvelopeEncryptedBlob is the persisted form of an encrypted secret. Byte fields are
// base64 encoded in JSON.
type EnvelopeEncryptedBlob struct {
	Version       int       `json:"version"`
	KekRef        string    `json:"kek_ref"`
	EncryptedDEK  []byte    `json:"encrypted_dek"`
	EncryptedBlob []byte    `json:"encrypted_blob"`
	IV            []byte    `json:"iv"`
	AuthTag       []byte    `json:"auth_tag"`
	Algorithm     string    `json:"algorithm"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the structural invariants that must hold before any decrypt attempt.
func (b *EnvelopeEncryptedBlob) Validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)
	case b.Version != EnvelopeVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidEnvelope, b.Version)
	case b.Algorithm != EnvelopeAlgorithm:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidEnvelope, b.Algorithm)
	case b.KekRef == "":
		return fmt.Errorf("%w: missing kek_ref", ErrInvalidEnvelope)
	case len(b.EncryptedDEK) == 0:
		return fmt.Errorf("%w: missing encrypted_dek", ErrInvalidEnvelope)
	case len(b.IV) != ivSize:
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidEnvelope, ivSize, len(b.IV))
	case len(b.AuthTag) != authTagSize:
		return fmt.Errorf("%w: auth_tag must be %d bytes, got %d", ErrInvalidEnvelope, authTagSize, len(b.AuthTag))
	}
	return nil
}

// AssociatedData binds the envelope header to the ciphertext so a blob cannot be
// replayed under a different kek_ref, version or algorithm.
func (b *EnvelopeEncryptedBlob) AssociatedData() []byte {
	return fmt.Appendf(nil, "%d|%s|%s", b.Version, b.KekRef, b.Algorithm)
}

// Marshal encodes the envelope as JSON.
func (b *EnvelopeEncryptedBlob) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// ParseEnvelope decodes and validates a JSON envelope.
func ParseEnvelope(data []byte) (*EnvelopeEncryptedBlob, error) {
	var b EnvelopeEncryptedBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
