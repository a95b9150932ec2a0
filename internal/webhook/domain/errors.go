// Package domain defines webhook verification requests and their typed errors.
package domain

import (
	"fmt"

	"github.com/allisson/trustcore/internal/errors"
)

// Verification error codes.
const (
	CodeMissingHeaders       errors.Code = "MISSING_HEADERS"
	CodeInvalidTimestamp     errors.Code = "INVALID_TIMESTAMP"
	CodeReplayWindowExceeded errors.Code = "REPLAY_WINDOW_EXCEEDED"
	CodeNonceReused          errors.Code = "NONCE_REUSED"
	CodeInvalidSignature     errors.Code = "INVALID_SIGNATURE"
)

// VerificationError is a policy rejection of an inbound webhook. It is never retryable.
type VerificationError struct {
	Code    errors.Code
	Message string
}

func (e *VerificationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webhook verification failed: %s", e.Code)
	}
	return fmt.Sprintf("webhook verification failed: %s: %s", e.Code, e.Message)
}

// ErrorCode returns the machine-readable code.
func (e *VerificationError) ErrorCode() errors.Code { return e.Code }

// Unwrap classifies every verification failure as unauthorized.
func (e *VerificationError) Unwrap() error { return errors.ErrUnauthorized }

// Is matches any VerificationError with the same code.
func (e *VerificationError) Is(target error) bool {
	t, ok := target.(*VerificationError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrMissingHeaders       = &VerificationError{Code: CodeMissingHeaders}
	ErrInvalidTimestamp     = &VerificationError{Code: CodeInvalidTimestamp}
	ErrReplayWindowExceeded = &VerificationError{Code: CodeReplayWindowExceeded}
	ErrNonceReused          = &VerificationError{Code: CodeNonceReused}
	ErrInvalidSignature     = &VerificationError{Code: CodeInvalidSignature}
)

func newError(code errors.Code, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewMissingHeaders, NewInvalidTimestamp etc. build errors carrying detail.
func NewMissingHeaders(missing string) error {
	return newError(CodeMissingHeaders, "missing %s", missing)
}

func NewInvalidTimestamp(raw string) error {
	return newError(CodeInvalidTimestamp, "timestamp %q is not numeric", raw)
}

func NewReplayWindowExceeded(skewMs, windowMs int64) error {
	return newError(CodeReplayWindowExceeded, "skew %dms exceeds window %dms", skewMs, windowMs)
}

func NewNonceReused() error {
	return newError(CodeNonceReused, "nonce already seen")
}

func NewInvalidSignature() error {
	return newError(CodeInvalidSignature, "signature mismatch")
}
