package domain

import (
	"github.com/allisson/trustcore/internal/errors"
)

// Attestation errors.
var (
	// ErrRootNotFound indicates no root is stored for the requested date.
	ErrRootNotFound = errors.Wrap(errors.ErrNotFound, "merkle root not found")

	// ErrRootExists indicates a root is already stored for the date and overwrite was not requested.
	ErrRootExists = errors.Wrap(errors.ErrConflict, "merkle root already stored")

	// ErrInvalidDate indicates a date that is neither YYYY-MM-DD nor YYYYMMDD.
	ErrInvalidDate = errors.Wrap(errors.ErrInvalidInput, "invalid date")

	// ErrInvalidSegment indicates a segment number outside the accepted range.
	ErrInvalidSegment = errors.Wrap(errors.ErrInvalidInput, "invalid merkle root segment")

	// ErrRootMismatch indicates a recomputed root, count or signature differs from the stored record.
	ErrRootMismatch = errors.Wrap(errors.ErrIntegrity, "merkle root mismatch")

	// ErrLogClosed is returned after Shutdown.
	ErrLogClosed = errors.New("attestation log is closed")
)
