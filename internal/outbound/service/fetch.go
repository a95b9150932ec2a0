package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	validation "github.com/jellydator/validation"

	outboundDomain "github.com/allisson/trustcore/internal/outbound/domain"
	"github.com/allisson/trustcore/internal/signature"
	customValidation "github.com/allisson/trustcore/internal/validation"
)

const (
	// DefaultFetchTimeout bounds a whole outbound request, body read included.
	DefaultFetchTimeout = 30 * time.Second

	// MaxRedirects is how many redirects SecureFetch follows, each one re-validated.
	MaxRedirects = 5
)

// Headers added to signed outbound requests.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

// FetchOptions configures SecureFetch.
type FetchOptions struct {
	Method  string
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	// Sign adds X-Signature, X-Timestamp and X-Nonce headers. The secret is
	// VendorSecret, or the policy's vendor secret for the host when empty.
	Sign         bool
	VendorSecret string
}

// Validate checks the options.
func (o *FetchOptions) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.Method, validation.In(
			"", http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodPatch, http.MethodDelete,
		)),
		validation.Field(&o.Timeout, validation.Min(time.Duration(0))),
	)
	return customValidation.WrapValidationError(err)
}

// SigningInput returns "{timestamp}.{nonce}.{url}.{body}".
func SigningInput(timestamp, nonce, rawURL string, body []byte) []byte {
	return fmt.Appendf(nil, "%s.%s.%s.%s", timestamp, nonce, rawURL, body)
}

// SignRequest sets the signature headers on req for body.
func SignRequest(req *http.Request, secret string, body []byte, now time.Time) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	nonce := uuid.NewString()
	sig := signature.HMACSign(SigningInput(ts, nonce, req.URL.String(), body), []byte(secret))

	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, nonce)
}

// newClient returns a client that never uses a proxy, re-checks every dialed address
// and re-validates every redirect.
func (g *Guard) newClient() *http.Client {
	transport := cleanhttp.DefaultPooledTransport()
	transport.Proxy = nil
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   g.dialControl,
	}
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			if _, err := g.validateURL(req.Context(), req.URL); err != nil {
				return err
			}
			stripSignatureOnHostChange(req, via)
			return nil
		},
	}
}

// stripSignatureOnHostChange drops the signature headers the client copied onto a
// redirect that leaves the host the request was signed for.
func stripSignatureOnHostChange(req *http.Request, via []*http.Request) {
	if len(via) == 0 || strings.EqualFold(req.URL.Host, via[0].URL.Host) {
		return
	}
	for _, h := range []string{HeaderSignature, HeaderTimestamp, HeaderNonce} {
		req.Header.Del(h)
	}
}

// dialControl runs after resolution and before connect, so a name that resolved
// to a public address at validation time but rebinds to an internal one is refused.
func (g *Guard) dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, address, "bad dial address")
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || g.ipBlocked(ip) {
		return outboundDomain.NewSSRFError(outboundDomain.CodeBlockedIP, address, "dial to non-public address")
	}
	return nil
}

// SecureFetch validates rawURL and performs the request. The timeout starts from ctx,
// so cancelling ctx aborts the request earlier. The timeout keeps running while the
// body is read; closing the body releases it.
func (g *Guard) SecureFetch(ctx context.Context, rawURL string, opts FetchOptions) (*http.Response, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, "unparseable url")
	}
	host, err := g.validateURL(ctx, u)
	if err != nil {
		return nil, err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		cancel()
		return nil, outboundDomain.NewSSRFError(outboundDomain.CodeInvalidURL, rawURL, err.Error())
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if opts.Sign {
		secret := opts.VendorSecret
		if secret == "" {
			secret, _ = g.vendorSecret(host)
		}
		if secret == "" {
			cancel()
			return nil, fmt.Errorf("%w: %s", outboundDomain.ErrMissingVendorSecret, host)
		}
		SignRequest(req, secret, opts.Body, time.Now())
	}

	resp, err := g.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
