package domain

import (
	"fmt"

	"github.com/allisson/trustcore/internal/errors"
)

// License error codes.
const (
	CodeLicenseInvalid     errors.Code = "LICENSE_INVALID"
	CodeFeatureNotLicensed errors.Code = "FEATURE_NOT_LICENSED"
)

// LicenseError is returned when a license does not permit an operation. It carries
// the audit trail of the verification that led to the decision.
type LicenseError struct {
	Code     errors.Code
	Feature  string
	Reason   string
	AuditLog []string
}

func (e *LicenseError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("license check failed: %s: %s (feature %q)", e.Code, e.Reason, e.Feature)
	}
	return fmt.Sprintf("license check failed: %s: %s", e.Code, e.Reason)
}

// ErrorCode returns the machine-readable code.
func (e *LicenseError) ErrorCode() errors.Code { return e.Code }

// Unwrap classifies license rejections as forbidden.
func (e *LicenseError) Unwrap() error { return errors.ErrForbidden }

// Is matches any LicenseError with the same code.
func (e *LicenseError) Is(target error) bool {
	t, ok := target.(*LicenseError)
	return ok && t.Code == e.Code
}

var (
	ErrLicenseInvalid     = &LicenseError{Code: CodeLicenseInvalid}
	ErrFeatureNotLicensed = &LicenseError{Code: CodeFeatureNotLicensed}
)
