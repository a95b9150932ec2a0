// Package dto defines the JSON shapes returned by the attestation endpoints.
package dto

import (
	"time"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
)

// RootResponse is a stored or computed daily Merkle root.
type RootResponse struct {
	Date        string    `json:"date"`
	Segment     int       `json:"segment,omitempty"`
	Root        string    `json:"root"`
	EventCount  int       `json:"event_count"`
	SignedBy    string    `json:"signed_by"`
	Signature   string    `json:"signature,omitempty"`
	BuildHash   string    `json:"build_hash"`
	ImageDigest string    `json:"image_digest,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ListRootsResponse is a page of roots.
type ListRootsResponse struct {
	Data []RootResponse `json:"data"`
}

// EventResponse is one buffered event.
type EventResponse struct {
	ID         string            `json:"id"`
	ActionHash string            `json:"action_hash"`
	Timestamp  time.Time         `json:"timestamp"`
	Actor      string            `json:"actor"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ListEventsResponse is a page of the current day's events.
type ListEventsResponse struct {
	Data  []EventResponse `json:"data"`
	Total int             `json:"total"`
}

// MapRootToResponse converts a domain root.
func MapRootToResponse(root *attestationDomain.DailyMerkleRoot) RootResponse {
	return RootResponse{
		Date:        root.Date,
		Segment:     root.Segment,
		Root:        root.Root,
		EventCount:  root.EventCount,
		SignedBy:    root.SignedBy,
		Signature:   root.Signature,
		BuildHash:   root.BuildHash,
		ImageDigest: root.ImageDigest,
		ComputedAt:  root.ComputedAt,
	}
}

// MapRootsToListResponse converts a page of roots.
func MapRootsToListResponse(roots []*attestationDomain.DailyMerkleRoot) ListRootsResponse {
	data := make([]RootResponse, 0, len(roots))
	for _, r := range roots {
		data = append(data, MapRootToResponse(r))
	}
	return ListRootsResponse{Data: data}
}

// MapEventsToListResponse returns events[offset:offset+limit] with the total count.
func MapEventsToListResponse(events []attestationDomain.Event, offset, limit int) ListEventsResponse {
	data := make([]EventResponse, 0, limit)
	for i := offset; i < len(events) && len(data) < limit; i++ {
		e := events[i]
		data = append(data, EventResponse{
			ID:         e.ID.String(),
			ActionHash: e.ActionHash,
			Timestamp:  e.Timestamp,
			Actor:      e.Actor,
			Metadata:   e.Metadata,
		})
	}
	return ListEventsResponse{Data: data, Total: len(events)}
}
