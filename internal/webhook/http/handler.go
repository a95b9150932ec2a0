package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/httputil"
)

// EventRecorder appends attestation events.
type EventRecorder interface {
	AppendEvent(ctx context.Context, event attestationDomain.Event) error
}

// WebhookHandler accepts verified webhooks.
type WebhookHandler struct {
	recorder EventRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(recorder EventRecorder, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{recorder: recorder, logger: logger, now: time.Now}
}

// ReceiveHandler records a webhook_received attestation event for the verified
// payload and answers 204. It must run behind WebhookVerificationMiddleware.
// POST /v1/webhooks/:vendor
func (h *WebhookHandler) ReceiveHandler(c *gin.Context) {
	payload, ok := GetPayload(c)
	if !ok {
		httputil.HandleErrorGin(c, errUnverified, h.logger)
		return
	}

	vendor := strings.ToLower(c.Param("vendor"))
	event := attestationDomain.NewEvent(
		attestationDomain.ActionWebhookReceived,
		"webhook:"+vendor,
		payload,
		map[string]string{
			"vendor":     vendor,
			"request_id": requestid.Get(c),
		},
		h.now(),
	)
	if err := h.recorder.AppendEvent(c.Request.Context(), event); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
