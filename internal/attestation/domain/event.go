// Package domain defines attestation events and the signed daily Merkle root that
// summarizes them.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/trustcore/internal/validation"
)

// Well-known actions recorded by the system itself.
const (
	ActionIntegrityViolation = "integrity_violation"
	ActionCanaryTriggered    = "canary_triggered"
	ActionWebhookReceived    = "webhook_received"
	ActionAuditLoss          = "audit_loss"
)

// Event is a single security-relevant action. Events are immutable once appended.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	ActionHash string            `json:"action_hash"`
	Timestamp  time.Time         `json:"timestamp"`
	Actor      string            `json:"actor"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields that feed the Merkle leaf.
func (e *Event) Validate() error {
	err := validation.ValidateStruct(e,
		validation.Field(&e.ActionHash, validation.Required, customValidation.NoWhitespace),
		validation.Field(&e.Timestamp, validation.Required),
		validation.Field(&e.Actor, validation.Required, customValidation.NoWhitespace),
	)
	return customValidation.WrapValidationError(err)
}

// HashAction returns the hex SHA-256 of "action|subject".
func HashAction(action string, subject []byte) string {
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte("|"))
	h.Write(subject)
	return hex.EncodeToString(h.Sum(nil))
}

// NewEvent builds an event for action performed by actor at now. The action name
// is kept in metadata; the leaf only commits to its hash.
func NewEvent(action, actor string, subject []byte, metadata map[string]string, now time.Time) Event {
	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md["action"] = action
	return Event{
		ID:         uuid.Must(uuid.NewV7()),
		ActionHash: HashAction(action, subject),
		Timestamp:  now.UTC(),
		Actor:      actor,
		Metadata:   md,
	}
}
