package commands

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	licenseDomain "github.com/allisson/trustcore/internal/license/domain"
	licenseService "github.com/allisson/trustcore/internal/license/service"
	"github.com/allisson/trustcore/internal/signature"
)

type keypairOutput struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// RunGenerateLicenseKeypair prints a new Ed25519 key pair for signing licenses. The
// public key goes into LICENSE_PUBLIC_KEY; the private key must stay with the issuer.
func RunGenerateLicenseKeypair(rw IOTuple, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	pub, priv, err := signature.GenerateEd25519KeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate license key pair: %w", err)
	}
	out := keypairOutput{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
	}

	if format == "json" {
		return writeJSON(rw.Writer, out)
	}
	_, _ = fmt.Fprintln(rw.Writer, "# Keep LICENSE_PRIVATE_KEY offline; only the public key is deployed")
	_, _ = fmt.Fprintf(rw.Writer, "LICENSE_PUBLIC_KEY=\"%s\"\n", out.PublicKey)
	_, _ = fmt.Fprintf(rw.Writer, "LICENSE_PRIVATE_KEY=\"%s\"\n", out.PrivateKey)
	return nil
}

// RunSignLicense reads a license payload from payloadPath ("-" for rw.Reader),
// validates it and writes the signed license document to rw.Writer.
func RunSignLicense(rw IOTuple, logger *slog.Logger, privateKey, payloadPath string) error {
	priv, err := decodePrivateKey(privateKey)
	if err != nil {
		return err
	}

	payload, err := readInput(rw.Reader, payloadPath)
	if err != nil {
		return err
	}

	var p licenseDomain.LicensePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("license payload is not a json object: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid license payload: %w", err)
	}

	sig, err := licenseService.SignLicense(payload, priv)
	if err != nil {
		return fmt.Errorf("failed to sign license: %w", err)
	}

	logger.Info("license signed", slog.String("org", p.Org), slog.String("exp", p.Exp))

	return writeJSON(rw.Writer, licenseDomain.LicenseDocument{
		Payload:   json.RawMessage(payload),
		Signature: base64.StdEncoding.EncodeToString(sig),
	})
}

// RunVerifyLicense verifies the license document at path against publicKey at now
// and prints the result. With feature set the feature is enforced as well. It
// returns an error whenever the license would be rejected.
func RunVerifyLicense(
	verifier *licenseService.Verifier,
	rw IOTuple,
	path, publicKey, feature string,
	now time.Time,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	pub, err := licenseDomain.DecodePublicKey(publicKey)
	if err != nil {
		return err
	}
	data, err := readInput(rw.Reader, path)
	if err != nil {
		return err
	}
	doc, err := licenseDomain.ParseLicenseDocument(data)
	if err != nil {
		return err
	}
	sig, err := doc.SignatureBytes()
	if err != nil {
		return err
	}

	result := verifier.VerifyLicense(doc.Payload, sig, pub, now)

	var enforceErr error
	if feature != "" {
		enforceErr = verifier.EnforceLicense(result, feature)
	} else if !result.Valid {
		enforceErr = fmt.Errorf("license rejected: %s", result.Status)
	}

	if format == "json" {
		if err := writeJSON(rw.Writer, result); err != nil {
			return err
		}
		return enforceErr
	}

	_, _ = fmt.Fprintf(rw.Writer, "Status:   %s\n", result.Status)
	_, _ = fmt.Fprintf(rw.Writer, "Valid:    %t\n", result.Valid)
	if result.Org != "" {
		_, _ = fmt.Fprintf(rw.Writer, "Org:      %s\n", result.Org)
	}
	if result.ExpiresAt != nil {
		_, _ = fmt.Fprintf(rw.Writer, "Expires:  %s\n", result.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if result.InGracePeriod {
		_, _ = fmt.Fprintln(rw.Writer, "Grace:    expired, operating in grace period")
	}
	if len(result.FeaturesEnabled) > 0 {
		_, _ = fmt.Fprintf(rw.Writer, "Features: %s\n", strings.Join(result.FeaturesEnabled, ", "))
	}
	if result.Error != "" {
		_, _ = fmt.Fprintf(rw.Writer, "Error:    %s\n", result.Error)
	}
	for _, entry := range result.AuditLog {
		_, _ = fmt.Fprintf(rw.Writer, "  - %s\n", entry)
	}
	return enforceErr
}

// decodePrivateKey accepts a base64 Ed25519 private key or its 32-byte seed.
func decodePrivateKey(s string) (ed25519.PrivateKey, error) {
	if s == "" {
		return nil, fmt.Errorf("license private key is required")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid license private key encoding: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("license private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}
