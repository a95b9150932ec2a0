package app

import (
	"fmt"
	"log/slog"

	licenseService "github.com/allisson/trustcore/internal/license/service"
)

// LicenseVerifier returns the license verifier.
func (c *Container) LicenseVerifier() *licenseService.Verifier {
	return c.licenseVerifier.must(func() *licenseService.Verifier {
		return licenseService.NewVerifier(c.Logger())
	})
}

// LicenseGate returns the gate for the document at LICENSE_FILE, or nil when no
// license file is configured.
func (c *Container) LicenseGate() (*licenseService.Gate, error) {
	return c.licenseGate.get(c.initLicenseGate)
}

func (c *Container) initLicenseGate() (*licenseService.Gate, error) {
	if c.config.LicenseFile == "" {
		return nil, nil
	}

	gate, err := licenseService.LoadGate(c.LicenseVerifier(), c.config.LicenseFile, c.config.LicensePublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}

	status := gate.Status()
	c.Logger().Info("license loaded",
		slog.String("org", status.Org),
		slog.String("status", string(status.Status)),
		slog.Bool("in_grace_period", status.InGracePeriod),
	)
	return gate, nil
}
