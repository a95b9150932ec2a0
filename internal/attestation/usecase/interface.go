// Package usecase implements the attestation log: a per-day event buffer that is
// sealed into a signed Merkle root at every UTC midnight.
package usecase

import (
	"context"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
)

// RootRepository persists daily Merkle roots.
type RootRepository interface {
	// Save stores root under its date and segment. Without overwrite it returns
	// ErrRootExists if that record is already stored.
	Save(ctx context.Context, root *attestationDomain.DailyMerkleRoot, overwrite bool) error

	// Get returns segment of the root for date (YYYY-MM-DD or YYYYMMDD) or ErrRootNotFound.
	Get(ctx context.Context, date string, segment int) (*attestationDomain.DailyMerkleRoot, error)

	// List returns stored roots, newest day first and segments in ascending order.
	List(ctx context.Context, offset, limit int) ([]*attestationDomain.DailyMerkleRoot, error)
}

// AttestationLog records security-relevant events and seals each UTC day into a
// signed Merkle root.
type AttestationLog interface {
	// AppendEvent adds event to the current day. Storage failures during a day
	// rollover are logged and never returned; only invalid events and a closed log
	// produce an error.
	AppendEvent(ctx context.Context, event attestationDomain.Event) error

	// DailyMerkleRoot returns the signed root of the current day so far without persisting it.
	DailyMerkleRoot(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error)

	// Flush persists a checkpoint root of the current day so far and retries roots
	// of earlier days whose storage failed. Only a checkpoint written by this log is
	// replaced; if another process already stored the day, the checkpoint goes to
	// the next free segment.
	Flush(ctx context.Context) (*attestationDomain.DailyMerkleRoot, error)

	// VerifyMerkleRoot recomputes the root of events and compares root, event count
	// and signature with stored. A mismatch is itself recorded as an
	// integrity_violation event.
	VerifyMerkleRoot(ctx context.Context, stored *attestationDomain.DailyMerkleRoot, events []attestationDomain.Event) (bool, error)

	// GetRoot returns segment of the stored root for date.
	GetRoot(ctx context.Context, date string, segment int) (*attestationDomain.DailyMerkleRoot, error)

	// ListRoots returns stored roots, newest first.
	ListRoots(ctx context.Context, offset, limit int) ([]*attestationDomain.DailyMerkleRoot, error)

	// Snapshot returns a copy of the current day's events.
	Snapshot() []attestationDomain.Event

	// Run seals the day at every UTC midnight until ctx is done or Shutdown is called.
	Run(ctx context.Context) error

	// Shutdown stops Run and rejects further events. Today's buffer is not persisted.
	Shutdown(ctx context.Context) error
}
