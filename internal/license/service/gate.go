package service

import (
	"fmt"
	"os"
	"time"

	licenseDomain "github.com/allisson/trustcore/internal/license/domain"
)

// Gate holds a loaded license and answers feature checks against it. The document
// is re-verified on every check so expiry and the grace period take effect without
// a restart.
type Gate struct {
	verifier  *Verifier
	payload   []byte
	signature []byte
	publicKey []byte
	now       func() time.Time
}

// NewGate creates a Gate for doc verified with publicKey.
func NewGate(verifier *Verifier, doc *licenseDomain.LicenseDocument, publicKey []byte) (*Gate, error) {
	sig, err := doc.SignatureBytes()
	if err != nil {
		return nil, err
	}
	return &Gate{
		verifier:  verifier,
		payload:   append([]byte(nil), doc.Payload...),
		signature: sig,
		publicKey: append([]byte(nil), publicKey...),
		now:       time.Now,
	}, nil
}

// LoadGate reads a license document from path and decodes the base64 public key.
func LoadGate(verifier *Verifier, path, publicKey string) (*Gate, error) {
	pub, err := licenseDomain.DecodePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied license path
	if err != nil {
		return nil, fmt.Errorf("failed to read license file: %w", err)
	}
	doc, err := licenseDomain.ParseLicenseDocument(data)
	if err != nil {
		return nil, err
	}
	return NewGate(verifier, doc, pub)
}

// Status verifies the license at the current time.
func (g *Gate) Status() *licenseDomain.VerificationResult {
	return g.verifier.VerifyLicense(g.payload, g.signature, g.publicKey, g.now())
}

// Enforce returns a *licenseDomain.LicenseError unless feature is currently licensed.
func (g *Gate) Enforce(feature string) error {
	return g.verifier.EnforceLicense(g.Status(), feature)
}
