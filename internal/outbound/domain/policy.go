package domain

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/jellydator/validation"
	"gopkg.in/yaml.v3"

	"github.com/allisson/trustcore/internal/errors"
	customValidation "github.com/allisson/trustcore/internal/validation"
)

// Policy configures the outbound guard.
//
// Allowlist entries are exact hostnames or "*.domain" wildcards matching any
// subdomain (but not the bare domain). VendorSecrets maps a hostname to the HMAC
// secret used for signed requests.
type Policy struct {
	Allowlist     []string          `yaml:"allowlist"`
	VendorSecrets map[string]string `yaml:"vendor_secrets"`
	StrictDNS     bool              `yaml:"strict_dns"`
}

// Validate checks every allowlist entry is a hostname or wildcard pattern.
func (p *Policy) Validate() error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Allowlist,
			validation.Each(validation.Required, customValidation.DomainPattern),
		),
	)
	return customValidation.WrapValidationError(err)
}

// Merge appends other's allowlist and vendor secrets to p. StrictDNS is sticky.
func (p *Policy) Merge(other *Policy) {
	if other == nil {
		return
	}
	p.Allowlist = append(p.Allowlist, other.Allowlist...)
	if len(other.VendorSecrets) > 0 && p.VendorSecrets == nil {
		p.VendorSecrets = make(map[string]string, len(other.VendorSecrets))
	}
	for host, secret := range other.VendorSecrets {
		p.VendorSecrets[NormalizeHost(host)] = secret
	}
	p.StrictDNS = p.StrictDNS || other.StrictDNS
}

// ParsePolicy builds a policy from a comma-separated allowlist and "host=secret,..."
// vendor secrets.
func ParsePolicy(allowlist, vendorSecrets string, strictDNS bool) (*Policy, error) {
	p := &Policy{StrictDNS: strictDNS}
	for entry := range strings.SplitSeq(allowlist, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			p.Allowlist = append(p.Allowlist, entry)
		}
	}
	if strings.TrimSpace(vendorSecrets) != "" {
		p.VendorSecrets = make(map[string]string)
		for part := range strings.SplitSeq(vendorSecrets, ",") {
			host, secret, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || host == "" || secret == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed vendor secret entry %q", host)
			}
			p.VendorSecrets[NormalizeHost(host)] = secret
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadPolicyFile reads a YAML policy file.
//
//	allowlist:
//	  - api.trendyol.com
//	  - "*.shopify.com"
//	vendor_secrets:
//	  api.trendyol.com: whsec_...
//	strict_dns: false
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbound policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse outbound policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// NormalizeHost lowercases host and strips a trailing dot.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
