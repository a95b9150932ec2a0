// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"fmt"

	validation "github.com/jellydator/validation"
)

var errNotBase64 = validation.NewError("validation_base64", "must be valid base64-encoded data")

// Base64 accepts any standard base64 string. Empty values pass; pair with Required.
var Base64 = Base64Bytes(0, 0)

// Base64Bytes accepts standard base64 that decodes to at least least bytes and, when
// most is positive, at most most bytes.
func Base64Bytes(least, most int) validation.Rule {
	return validation.By(func(value any) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_base64_type", "must be a string")
		}
		if s == "" {
			return nil
		}

		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return errNotBase64
		}

		switch {
		case least > 0 && least == most && len(decoded) != least:
			return validation.NewError("validation_base64_size", fmt.Sprintf("must decode to exactly %d bytes", least))
		case len(decoded) < least:
			return validation.NewError("validation_base64_size", fmt.Sprintf("must decode to at least %d bytes", least))
		case most > 0 && len(decoded) > most:
			return validation.NewError("validation_base64_size", fmt.Sprintf("must decode to at most %d bytes", most))
		}
		return nil
	})
}
