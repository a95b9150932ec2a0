// Package httputil holds the JSON error envelope and query helpers shared by the gin
// handlers.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/trustcore/internal/errors"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	name    string
	message string
}

// Checked in order. An empty message echoes err.Error(), which only input errors do.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "A conflict occurred with existing data"},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication is required"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "A dependency is temporarily unavailable, retry later"},
	{apperrors.ErrIntegrity, http.StatusInternalServerError, "integrity_violation", "Stored data failed an integrity check"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource"},
}

var internalError = errorMapping{status: http.StatusInternalServerError, name: "internal_error", message: "An internal error occurred"}

func mapError(err error) errorMapping {
	for _, m := range errorMappings {
		if apperrors.Is(err, m.target) {
			return m
		}
	}
	return internalError
}

// HandleErrorGin writes the status and envelope for a domain error. Internal details
// stay in the log; the body carries the error's machine-readable code when it has one.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	m := mapError(err)
	resp := ErrorResponse{Error: m.name, Message: m.message, Code: string(apperrors.CodeOf(err))}
	if resp.Message == "" {
		resp.Message = err.Error()
	}
	if m.status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "5")
	}

	if logger != nil {
		level := slog.LevelWarn
		if m.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c, level, "request failed",
			slog.Int("status_code", m.status),
			slog.String("error_code", m.name),
			slog.Any("error", err),
		)
	}

	c.JSON(m.status, resp)
}

// HandleBadRequestGin writes a 400 for a body or parameter that could not be parsed.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	writeClientError(c, http.StatusBadRequest, "bad_request", err, logger)
}

// HandleValidationErrorGin writes a 422 for input that parsed but failed validation.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	writeClientError(c, http.StatusUnprocessableEntity, "validation_error", err, logger)
}

func writeClientError(c *gin.Context, status int, name string, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn(name, slog.Any("error", err))
	}
	c.JSON(status, ErrorResponse{Error: name, Message: err.Error()})
}
