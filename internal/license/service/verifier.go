// Package service verifies and signs Ed25519 licenses.
package service

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	licenseDomain "github.com/allisson/trustcore/internal/license/domain"
	"github.com/allisson/trustcore/internal/signature"
)

// Verifier verifies signed licenses and gates features on the result.
type Verifier struct {
	logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger}
}

// VerifyLicense checks payload against sig and publicKey at time now. It never
// returns an error: every failure is reported through the result's Status.
//
// A license past exp but inside its grace period is still valid, with Expired and
// InGracePeriod both set.
func (v *Verifier) VerifyLicense(payload, sig, publicKey []byte, now time.Time) *licenseDomain.VerificationResult {
	result := &licenseDomain.VerificationResult{}

	var p licenseDomain.LicensePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return result.Fail(licenseDomain.StatusMalformed, "payload is not a json object")
	}
	if err := p.Validate(); err != nil {
		return result.Fail(licenseDomain.StatusMalformed, err.Error())
	}
	result.Org = p.Org
	result.Audit("structure validated for org %q", p.Org)

	exp, err := p.ExpiresAt()
	if err != nil {
		return result.Fail(licenseDomain.StatusMalformed, "invalid exp")
	}
	result.ExpiresAt = &exp

	hash, err := signature.PayloadHash(json.RawMessage(payload))
	if err != nil {
		return result.Fail(licenseDomain.StatusMalformed, "payload cannot be canonicalized")
	}
	result.Audit("payload hashed (sha512)")

	switch {
	case len(publicKey) != licenseDomain.PublicKeySize:
		return result.Fail(licenseDomain.StatusInvalidSignature,
			fmt.Sprintf("public key must be %d bytes, got %d", licenseDomain.PublicKeySize, len(publicKey)))
	case len(sig) != licenseDomain.SignatureSize:
		return result.Fail(licenseDomain.StatusInvalidSignature,
			fmt.Sprintf("signature must be %d bytes, got %d", licenseDomain.SignatureSize, len(sig)))
	}
	if !signature.Ed25519Verify(hash, publicKey, sig) {
		return result.Fail(licenseDomain.StatusInvalidSignature, "signature does not match payload")
	}
	result.Audit("signature verified")

	graceEnd := exp.Add(p.GracePeriod())
	result.Expired = now.After(exp)
	result.InGracePeriod = result.Expired && !now.After(graceEnd)

	if now.After(graceEnd) {
		result.InGracePeriod = false
		return result.Fail(licenseDomain.StatusExpired,
			fmt.Sprintf("expired at %s, grace period ended at %s",
				exp.UTC().Format(time.RFC3339), graceEnd.UTC().Format(time.RFC3339)))
	}

	result.Valid = true
	result.FeaturesEnabled = normalizeFeatures(p.Features)
	if result.InGracePeriod {
		result.Status = licenseDomain.StatusGracePeriod
		result.Audit("expired, in grace period until %s", graceEnd.UTC().Format(time.RFC3339))
	} else {
		result.Status = licenseDomain.StatusValid
		result.Audit("valid until %s", exp.UTC().Format(time.RFC3339))
	}
	return result
}

// EnforceLicense returns a *LicenseError unless result is valid and enables feature.
// Operating inside the grace period is allowed but logged.
func (v *Verifier) EnforceLicense(result *licenseDomain.VerificationResult, feature string) error {
	if result == nil || !result.Valid {
		reason := "license is not valid"
		var audit []string
		if result != nil {
			audit = slices.Clone(result.AuditLog)
			if result.Error != "" {
				reason = result.Error
			}
		}
		v.logger.Error("license enforcement failed",
			slog.String("code", string(licenseDomain.CodeLicenseInvalid)),
			slog.String("feature", feature),
			slog.String("reason", reason))
		return &licenseDomain.LicenseError{
			Code:     licenseDomain.CodeLicenseInvalid,
			Feature:  feature,
			Reason:   reason,
			AuditLog: audit,
		}
	}

	if !slices.Contains(result.FeaturesEnabled, feature) {
		v.logger.Warn("feature not licensed",
			slog.String("code", string(licenseDomain.CodeFeatureNotLicensed)),
			slog.String("org", result.Org),
			slog.String("feature", feature))
		return &licenseDomain.LicenseError{
			Code:     licenseDomain.CodeFeatureNotLicensed,
			Feature:  feature,
			Reason:   "feature is not enabled by the license",
			AuditLog: slices.Clone(result.AuditLog),
		}
	}

	if result.InGracePeriod {
		attrs := []any{slog.String("org", result.Org), slog.String("feature", feature)}
		if result.ExpiresAt != nil {
			attrs = append(attrs, slog.Time("expired_at", *result.ExpiresAt))
		}
		v.logger.Warn("license expired, operating in grace period", attrs...)
	}
	return nil
}

// SignLicense signs the canonical hash of payload. payload must be a JSON object.
func SignLicense(payload []byte, priv ed25519.PrivateKey) ([]byte, error) {
	hash, err := signature.PayloadHash(json.RawMessage(payload))
	if err != nil {
		return nil, err
	}
	return signature.Ed25519Sign(hash, priv)
}

func normalizeFeatures(features []string) []string {
	out := slices.Clone(features)
	slices.Sort(out)
	return slices.Compact(out)
}
