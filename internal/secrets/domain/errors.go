package domain

import (
	"github.com/allisson/trustcore/internal/errors"
)

// Envelope error definitions.
var (
	// ErrInvalidEnvelope indicates a structurally invalid envelope (bad version,
	// algorithm, IV or tag length). It is raised before any decrypt attempt.
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid envelope")
)
