// Package service implements the outbound SSRF guard and the guarded HTTP client.
package service

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	outboundDomain "github.com/allisson/trustcore/internal/outbound/domain"
)

// DefaultDNSTimeout bounds hostname resolution during validation.
const DefaultDNSTimeout = 30 * time.Second

// Resolver resolves hostnames. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"localhost.localdomain":    {},
	"metadata.google.internal": {},
	"metadata":                 {},
	"ip6-localhost":            {},
	"ip6-loopback":             {},
}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

var thisNetwork = netip.MustParsePrefix("0.0.0.0/8")

// IsBlockedIP reports whether ip is loopback, private, link-local, unspecified,
// multicast, carrier-grade NAT or in 0.0.0.0/8. IPv4-mapped IPv6 addresses are
// judged by their IPv4 form.
func IsBlockedIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	return !ip.IsValid() ||
		ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		cgnat.Contains(ip) ||
		thisNetwork.Contains(ip)
}

// Guard validates outbound URLs against a protocol and host blocklist, an allowlist
// and the addresses the host resolves to.
//
// DNS failures are logged and allowed unless the policy sets StrictDNS. The allowlist
// may be extended at runtime.
type Guard struct {
	resolver   Resolver
	dnsTimeout time.Duration
	strictDNS  bool
	logger     *slog.Logger
	ipBlocked  func(netip.Addr) bool
	client     *http.Client

	mu            sync.RWMutex
	exact         map[string]struct{}
	wildcards     []string
	vendorSecrets map[string]string
}

// NewGuard creates a guard for policy. A nil resolver means net.DefaultResolver.
func NewGuard(policy *outboundDomain.Policy, resolver Resolver, logger *slog.Logger) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = &outboundDomain.Policy{}
	}
	g := &Guard{
		resolver:      resolver,
		dnsTimeout:    DefaultDNSTimeout,
		strictDNS:     policy.StrictDNS,
		logger:        logger,
		ipBlocked:     IsBlockedIP,
		exact:         make(map[string]struct{}),
		vendorSecrets: make(map[string]string),
	}
	g.client = g.newClient()
	for _, pattern := range policy.Allowlist {
		g.AddAllowedDomain(pattern)
	}
	for host, secret := range policy.VendorSecrets {
		g.vendorSecrets[outboundDomain.NormalizeHost(host)] = secret
	}
	return g
}

// AddAllowedDomain adds an exact hostname or "*.domain" wildcard to the allowlist.
func (g *Guard) AddAllowedDomain(pattern string) {
	pattern = outboundDomain.NormalizeHost(strings.TrimSpace(pattern))
	if pattern == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		if !slices.Contains(g.wildcards, suffix) {
			g.wildcards = append(g.wildcards, suffix)
		}
		return
	}
	g.exact[pattern] = struct{}{}
}

// AllowedDomains returns the allowlist, sorted.
func (g *Guard) AllowedDomains() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.exact)+len(g.wildcards))
	for host := range g.exact {
		out = append(out, host)
	}
	for _, suffix := range g.wildcards {
		out = append(out, "*."+suffix)
	}
	slices.Sort(out)
	return out
}

func (g *Guard) isAllowed(host string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.exact[host]; ok {
		return true
	}
	for _, suffix := range g.wildcards {
		if strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func (g *Guard) vendorSecret(host string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.vendorSecrets[host]
	return s, ok
}

// ValidateOutboundURL returns nil when rawURL may be fetched, or an
// *outboundDomain.SSRFError.
func (g *Guard) ValidateOutboundURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, "unparseable url")
	}
	_, err = g.validateURL(ctx, u)
	return err
}

// validateURL returns the normalized host on success.
func (g *Guard) validateURL(ctx context.Context, u *url.URL) (string, error) {
	rawURL := u.String()

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return "", outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, "missing scheme")
	default:
		return "", outboundDomain.NewSSRFError(outboundDomain.CodeBlockedProtocol, rawURL, "scheme "+u.Scheme+" is not allowed")
	}

	host := outboundDomain.NormalizeHost(u.Hostname())
	if host == "" {
		return "", outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, "missing host")
	}
	if u.User != nil {
		return "", outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, "credentials in url")
	}

	if err := g.checkHost(rawURL, host); err != nil {
		return "", err
	}

	if !g.isAllowed(host) {
		return "", outboundDomain.NewSSRFError(outboundDomain.CodeNotInAllowlist, rawURL, host+" is not allowlisted")
	}

	if _, err := netip.ParseAddr(host); err == nil {
		return host, nil
	}
	return host, g.checkResolved(ctx, rawURL, host)
}

func (g *Guard) checkHost(rawURL, host string) error {
	if _, ok := blockedHostnames[host]; ok || strings.HasSuffix(host, ".localhost") {
		return outboundDomain.NewSSRFError(outboundDomain.CodeBlockedHostname, rawURL, host+" is an internal hostname")
	}
	if ip, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil && g.ipBlocked(ip) {
		return outboundDomain.NewSSRFError(outboundDomain.CodeBlockedIP, rawURL, ip.String()+" is not a public address")
	}
	return nil
}

// checkResolved rejects hosts resolving to a blocked address, which catches DNS
// rebinding of allowlisted names.
func (g *Guard) checkResolved(ctx context.Context, rawURL, host string) error {
	ctx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		if g.strictDNS {
			return outboundDomain.NewSSRFError(outboundDomain.CodeDNSResolutionFailed, rawURL, "cannot resolve "+host)
		}
		g.logger.Warn("outbound dns resolution failed, allowing request",
			slog.String("host", host),
			slog.Any("error", err))
		return nil
	}

	for _, a := range addrs {
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok || g.ipBlocked(ip) {
			return outboundDomain.NewSSRFError(
				outboundDomain.CodeBlockedIP,
				rawURL,
				host+" resolves to non-public address "+a.IP.String(),
			)
		}
	}
	return nil
}
