// Package domain defines canary honeytokens and the triggers they produce.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/trustcore/internal/validation"
)

// Token is a canary planted in a code path that must never run. ExpectedTriggers
// is always zero: any trigger is anomalous.
type Token struct {
	CanaryID         string    `json:"canary_id"`
	FunctionPath     string    `json:"function_path"`
	StableHash       string    `json:"stable_hash"`
	CreatedAt        time.Time `json:"created_at"`
	ExpectedTriggers int       `json:"expected_triggers"`
}

// Trigger records one execution of a canary code path.
type Trigger struct {
	CanaryID     string            `json:"canary_id"`
	FunctionPath string            `json:"function_path,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	Stack        string            `json:"stack"`
	TriggeredAt  time.Time         `json:"triggered_at"`
	Registered   bool              `json:"registered"`
}

// ManifestEntry is the build-reproducibility view of a Token. It carries the
// hash only, never the salt or the planted function path.
type ManifestEntry struct {
	CanaryID         string `json:"canary_id"`
	StableHash       string `json:"stable_hash"`
	ExpectedTriggers int    `json:"expected_triggers"`
}

// Manifest is the exported list of canaries, sorted by id.
type Manifest struct {
	Canaries []ManifestEntry `json:"canaries"`
}

// StableHash returns hex SHA-256 of "id|salt". It is identical across builds for the
// same id and salt.
func StableHash(id string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte("|"))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateRegistration checks the id and path given to InsertCanary.
func ValidateRegistration(functionPath, id string) error {
	err := validation.Errors{
		"canary_id": validation.Validate(
			id,
			validation.Required,
			customValidation.NoSpaces,
			validation.Length(1, 128),
		),
		"function_path": validation.Validate(functionPath, validation.Required, customValidation.NotBlank),
	}.Filter()
	return customValidation.WrapValidationError(err)
}
