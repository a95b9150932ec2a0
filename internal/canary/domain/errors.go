package domain

import (
	"github.com/allisson/trustcore/internal/errors"
)

// Canary errors.
var (
	// ErrCanaryNotFound indicates no canary is registered under the id.
	ErrCanaryNotFound = errors.Wrap(errors.ErrNotFound, "canary not found")

	// ErrCanaryExists indicates the id is already planted at a different function path.
	ErrCanaryExists = errors.Wrap(errors.ErrConflict, "canary already registered")
)
