// Package usecase implements the canary registry: planting honeytokens, detecting
// their execution and alerting on it.
package usecase

import (
	"context"
	"io"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
	canaryDomain "github.com/allisson/trustcore/internal/canary/domain"
)

// AlertFunc receives canary triggers that pass the alert rate limit.
type AlertFunc func(ctx context.Context, trigger canaryDomain.Trigger)

// EventRecorder appends attestation events.
type EventRecorder interface {
	AppendEvent(ctx context.Context, event attestationDomain.Event) error
}

// Registry owns the set of planted canaries.
type Registry interface {
	// InsertCanary plants id at functionPath. Re-inserting the same pair returns the
	// existing token.
	InsertCanary(functionPath, id string) (*canaryDomain.Token, error)

	// TriggerCanary records that id executed. It never fails the caller; unknown
	// ids are reported as unregistered triggers.
	TriggerCanary(ctx context.Context, id string, details map[string]string) canaryDomain.Trigger

	// VerifyCanaryHash compares the stored hash of id with expected in constant time.
	VerifyCanaryHash(id, expected string) bool

	Get(id string) (*canaryDomain.Token, error)
	List() []*canaryDomain.Token
	TriggerCount() int
	DroppedAlerts() int
	ExportManifest(w io.Writer) error
}
