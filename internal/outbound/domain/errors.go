// Package domain defines outbound request policy and SSRF rejection errors.
package domain

import (
	"fmt"

	"github.com/allisson/trustcore/internal/errors"
)

// SSRF rejection codes.
const (
	CodeBlockedProtocol     errors.Code = "BLOCKED_PROTOCOL"
	CodeBlockedHostname     errors.Code = "BLOCKED_HOSTNAME"
	CodeBlockedIP           errors.Code = "BLOCKED_IP"
	CodeNotInAllowlist      errors.Code = "NOT_IN_ALLOWLIST"
	CodeDNSResolutionFailed errors.Code = "DNS_RESOLUTION_FAILED"
	CodeInvalidURL          errors.Code = "INVALID_URL"
)

// SSRFError rejects an outbound URL. Except for DNS_RESOLUTION_FAILED it is a
// deterministic policy decision and must not be retried.
type SSRFError struct {
	Code   errors.Code
	URL    string
	Reason string
}

func (e *SSRFError) Error() string {
	return fmt.Sprintf("outbound request blocked: %s: %s (%s)", e.Code, e.Reason, e.URL)
}

// ErrorCode returns the machine-readable code.
func (e *SSRFError) ErrorCode() errors.Code { return e.Code }

// Unwrap maps the code to its error class.
func (e *SSRFError) Unwrap() error {
	switch e.Code {
	case CodeInvalidURL:
		return errors.ErrInvalidInput
	case CodeDNSResolutionFailed:
		return errors.ErrUnavailable
	default:
		return errors.ErrForbidden
	}
}

// Is matches any SSRFError with the same code.
func (e *SSRFError) Is(target error) bool {
	t, ok := target.(*SSRFError)
	return ok && t.Code == e.Code
}

// NewSSRFError creates an SSRFError.
func NewSSRFError(code errors.Code, rawURL, reason string) *SSRFError {
	return &SSRFError{Code: code, URL: rawURL, Reason: reason}
}

// Sentinels for errors.Is checks.
var (
	ErrBlockedProtocol     = &SSRFError{Code: CodeBlockedProtocol}
	ErrBlockedHostname     = &SSRFError{Code: CodeBlockedHostname}
	ErrBlockedIP           = &SSRFError{Code: CodeBlockedIP}
	ErrNotInAllowlist      = &SSRFError{Code: CodeNotInAllowlist}
	ErrDNSResolutionFailed = &SSRFError{Code: CodeDNSResolutionFailed}
	ErrInvalidURL          = &SSRFError{Code: CodeInvalidURL}

	// ErrMissingVendorSecret indicates a signed fetch without a secret for the host.
	ErrMissingVendorSecret = errors.Wrap(errors.ErrInvalidInput, "no vendor secret for signed request")
)
