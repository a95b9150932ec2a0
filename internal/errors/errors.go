// Package errors defines the failure classes shared across components. Each component
// wraps one of these sentinels so a caller can tell a policy rejection from a
// transient outage without knowing which component failed.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the write collides with existing data.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput means the input failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized means a credential or signature did not verify.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is a deterministic policy rejection. Never retry it.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable is a transient infrastructure failure such as an unreachable KMS
	// or a DNS timeout. Retry with backoff.
	ErrUnavailable = errors.New("unavailable")
	// ErrIntegrity means persisted security data failed verification.
	ErrIntegrity = errors.New("integrity violation")
)

// Code is a stable, machine-readable reason such as BLOCKED_IP or NONCE_REUSED.
type Code string

// Coder is implemented by typed errors that carry a Code.
type Coder interface {
	ErrorCode() Code
}

// Wrap prefixes err with message, keeping it matchable with Is. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New returns an error with the given message, for component-local sentinels that
// belong to no failure class.
func New(message string) error {
	return errors.New(message)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of the first Coder in err's chain, or "".
func CodeOf(err error) Code {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// IsRetryable reports whether err is a transient failure. Policy and cryptographic
// rejections never are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
