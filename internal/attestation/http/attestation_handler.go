// Package http exposes attestation roots and the current day's events over HTTP.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	"github.com/allisson/trustcore/internal/attestation/http/dto"
	attestationUseCase "github.com/allisson/trustcore/internal/attestation/usecase"
	"github.com/allisson/trustcore/internal/httputil"
)

// A year of daily roots fits in one page.
var (
	rootPageLimits  = httputil.PageLimits{Default: 30, Max: 366}
	eventPageLimits = httputil.PageLimits{Default: 50, Max: 500}
)

// AttestationHandler serves read-only attestation endpoints.
type AttestationHandler struct {
	attestationLog attestationUseCase.AttestationLog
	logger         *slog.Logger
}

// NewAttestationHandler creates an AttestationHandler.
func NewAttestationHandler(attestationLog attestationUseCase.AttestationLog, logger *slog.Logger) *AttestationHandler {
	return &AttestationHandler{attestationLog: attestationLog, logger: logger}
}

// GetRootHandler returns the stored root of a day. segment selects a record written by
// a later run of the same day.
// GET /v1/attestation/roots/:date?segment=0 with date as YYYYMMDD or YYYY-MM-DD.
func (h *AttestationHandler) GetRootHandler(c *gin.Context) {
	segment, err := httputil.ParseQueryInt(c, "segment", 0,
		validation.Min(0), validation.Max(attestationDomain.MaxSegment))
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	root, err := h.attestationLog.GetRoot(c.Request.Context(), c.Param("date"), segment)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapRootToResponse(root))
}

// ListRootsHandler returns stored roots, newest first.
// GET /v1/attestation/roots?offset=0&limit=30
func (h *AttestationHandler) ListRootsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c, rootPageLimits)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	roots, err := h.attestationLog.ListRoots(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapRootsToListResponse(roots))
}

// CurrentRootHandler returns the signed root of the current day so far. It is not persisted.
// GET /v1/attestation/current
func (h *AttestationHandler) CurrentRootHandler(c *gin.Context) {
	root, err := h.attestationLog.DailyMerkleRoot(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapRootToResponse(root))
}

// ListEventsHandler returns a page of the current day's events in append order.
// GET /v1/attestation/events?offset=0&limit=50
func (h *AttestationHandler) ListEventsHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c, eventPageLimits)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapEventsToListResponse(h.attestationLog.Snapshot(), offset, limit))
}
