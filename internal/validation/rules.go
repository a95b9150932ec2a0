// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/trustcore/internal/errors"
)

var (
	// hostnameRegex matches an RFC 1123 hostname made of dot separated labels.
	hostnameRegex = regexp.MustCompile(
		`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*\.?$`,
	)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NoSpaces validates that a string contains no whitespace at all, for identifiers.
var NoSpaces = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.ContainsFunc(s, unicode.IsSpace)
	},
	validation.NewError("validation_no_spaces", "must not contain whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// DomainPattern validates an allowlist entry: a hostname, an IP literal or "*." followed
// by a hostname.
var DomainPattern = validation.NewStringRuleWithError(
	func(s string) bool {
		s = strings.TrimPrefix(s, "*.")
		return len(s) <= 253 && hostnameRegex.MatchString(s)
	},
	validation.NewError("validation_domain_pattern", "must be a hostname or *.domain wildcard"),
)

// RFC3339 validates that a string is an RFC 3339 timestamp.
var RFC3339 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	},
	validation.NewError("validation_rfc3339", "must be an RFC 3339 timestamp"),
)
