// Package http exposes webhook verification as gin middleware.
package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/trustcore/internal/errors"
	"github.com/allisson/trustcore/internal/httputil"
	webhookDomain "github.com/allisson/trustcore/internal/webhook/domain"
	webhookUseCase "github.com/allisson/trustcore/internal/webhook/usecase"
)

// MaxPayloadBytes caps the webhook body read for verification.
const MaxPayloadBytes = 1 << 20

const payloadKey = "webhook_payload"

var errUnverified = apperrors.Wrap(apperrors.ErrUnauthorized, "webhook payload was not verified")

// SecretResolver returns the HMAC secret shared with a vendor.
type SecretResolver interface {
	SecretFor(vendor string) ([]byte, bool)
}

// SecretMap is a static SecretResolver.
type SecretMap map[string][]byte

// SecretFor implements SecretResolver.
func (m SecretMap) SecretFor(vendor string) ([]byte, bool) {
	s, ok := m[strings.ToLower(vendor)]
	return s, ok
}

// ParseSecretMap parses "vendor=secret,vendor2=secret2". Vendor names are lowercased.
func ParseSecretMap(raw string) (SecretMap, error) {
	m := make(SecretMap)
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	for part := range strings.SplitSeq(raw, ",") {
		vendor, secret, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || vendor == "" || secret == "" {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "malformed vendor secret entry %q", vendor)
		}
		m[strings.ToLower(vendor)] = []byte(secret)
	}
	return m, nil
}

// WebhookVerificationMiddleware authenticates POST /webhooks/:vendor calls.
//
// The vendor path parameter selects the shared secret; the signature, timestamp and
// nonce come from the X-Webhook-* headers. On success the raw body is available to
// handlers through GetPayload and as the request body. Any failure answers 401 with
// the verification code.
func WebhookVerificationMiddleware(
	verifier webhookUseCase.Verifier,
	secrets SecretResolver,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxPayloadBytes))
		if err != nil {
			httputil.HandleBadRequestGin(c, err, logger)
			c.Abort()
			return
		}

		vendor := c.Param("vendor")
		secret, _ := secrets.SecretFor(vendor)

		req := webhookDomain.Request{
			Payload:   body,
			Signature: c.GetHeader(webhookDomain.HeaderSignature),
			Timestamp: c.GetHeader(webhookDomain.HeaderTimestamp),
			Nonce:     c.GetHeader(webhookDomain.HeaderNonce),
			Secret:    secret,
		}

		if _, err := verifier.Verify(c.Request.Context(), req); err != nil {
			logger.Debug("webhook verification failed",
				slog.String("vendor", vendor),
				slog.String("code", string(apperrors.CodeOf(err))))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Set(payloadKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetPayload returns the verified webhook body.
func GetPayload(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(payloadKey)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}
