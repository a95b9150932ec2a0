// Package domain defines signed license documents and verification results.
package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/trustcore/internal/validation"
)

// Status summarizes a verification outcome.
type Status string

// Verification statuses.
const (
	StatusValid            Status = "valid"
	StatusGracePeriod      Status = "grace_period"
	StatusMalformed        Status = "malformed"
	StatusInvalidSignature Status = "invalid_signature"
	StatusExpired          Status = "expired"
)

// Ed25519 sizes checked before calling the verify primitive.
const (
	PublicKeySize = 32
	SignatureSize = 64
)

// LicensePayload is the signed body of a license. Exp and IssuedAt are RFC 3339.
// The signature covers the SHA-512 of the canonical JSON of the payload as
// received, so unknown fields are covered too.
type LicensePayload struct {
	Org                string   `json:"org"`
	Features           []string `json:"features"`
	Exp                string   `json:"exp"`
	IssuedAt           string   `json:"issued_at"`
	GracePeriodSeconds int64    `json:"grace_period_seconds"`
	MaxConnectors      *int64   `json:"max_connectors,omitempty"`
	MaxRequestsPerDay  *int64   `json:"max_requests_per_day,omitempty"`
}

// Validate checks required fields and formats.
func (p *LicensePayload) Validate() error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Org, validation.Required, customValidation.NotBlank),
		validation.Field(&p.Features, validation.NotNil, validation.Each(validation.Required)),
		validation.Field(&p.Exp, validation.Required, customValidation.RFC3339),
		validation.Field(&p.IssuedAt, validation.Required, customValidation.RFC3339),
		validation.Field(&p.GracePeriodSeconds, validation.Min(int64(0))),
		validation.Field(&p.MaxConnectors, validation.Min(int64(0))),
		validation.Field(&p.MaxRequestsPerDay, validation.Min(int64(0))),
	)
	return customValidation.WrapValidationError(err)
}

// ExpiresAt parses Exp.
func (p *LicensePayload) ExpiresAt() (time.Time, error) {
	return time.Parse(time.RFC3339, p.Exp)
}

// GracePeriod returns the grace period as a duration.
func (p *LicensePayload) GracePeriod() time.Duration {
	return time.Duration(p.GracePeriodSeconds) * time.Second
}

// VerificationResult is the outcome of verifying a license. AuditLog records each
// step taken so the decision can be reconstructed.
type VerificationResult struct {
	Valid           bool       `json:"valid"`
	Expired         bool       `json:"expired"`
	InGracePeriod   bool       `json:"in_grace_period"`
	Status          Status     `json:"status"`
	Org             string     `json:"org,omitempty"`
	FeaturesEnabled []string   `json:"features_enabled"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	AuditLog        []string   `json:"audit_log"`
}

// Audit appends a formatted audit entry.
func (r *VerificationResult) Audit(format string, args ...any) {
	r.AuditLog = append(r.AuditLog, fmt.Sprintf(format, args...))
}

// Fail marks the result invalid with status and reason.
func (r *VerificationResult) Fail(status Status, reason string) *VerificationResult {
	r.Valid = false
	r.Status = status
	r.Error = reason
	r.FeaturesEnabled = nil
	r.Audit("rejected: %s: %s", status, reason)
	return r
}

// LicenseDocument is the on-disk form of a license: the raw payload JSON and a
// base64 Ed25519 signature over its hash.
type LicenseDocument struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// SignatureBytes decodes the signature.
func (d *LicenseDocument) SignatureBytes() ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(d.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid license signature encoding: %w", err)
	}
	return sig, nil
}

// ParseLicenseDocument decodes a license document.
func ParseLicenseDocument(data []byte) (*LicenseDocument, error) {
	var d LicenseDocument
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse license document: %w", err)
	}
	if len(d.Payload) == 0 || d.Signature == "" {
		return nil, fmt.Errorf("license document requires payload and signature")
	}
	return &d, nil
}

// DecodePublicKey decodes a base64 Ed25519 public key and checks its size.
func DecodePublicKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid license public key encoding: %w", err)
	}
	if len(key) != PublicKeySize {
		return nil, fmt.Errorf("license public key must be %d bytes, got %d", PublicKeySize, len(key))
	}
	return key, nil
}
