package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SealedPrefix marks a configuration value holding a base64 JSON envelope instead
// of a plaintext secret.
const SealedPrefix = "enc:"

// EncodeSealed renders b as a sealed configuration value.
func EncodeSealed(b *EnvelopeEncryptedBlob) (string, error) {
	data, err := b.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// DecodeSealed parses a sealed configuration value.
func DecodeSealed(value string) (*EnvelopeEncryptedBlob, error) {
	if !IsSealed(value) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidEnvelope, SealedPrefix)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return ParseEnvelope(data)
}
