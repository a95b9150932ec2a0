package domain

import (
	"fmt"
	"unicode"
)

// maxKekRefLength bounds KEK references so they fit the storage column and log lines.
const maxKekRefLength = 255

// ValidateKekRef checks that a KEK reference is usable as an opaque identifier.
//
// A reference names a key held by the KEK provider (a master key ID for the keyring
// provider, a logical name mapped to a KMS key URI for the KMS provider). It must be
// non-empty, at most 255 bytes and free of whitespace and control characters.
func ValidateKekRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKekRef)
	}
	if len(ref) > maxKekRefLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKekRef, maxKekRefLength)
	}
	for _, r := range ref {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidKekRef)
		}
	}
	return nil
}
