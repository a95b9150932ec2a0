// Package service implements Merkle root computation and root signing.
package service

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
)

// LeafHash returns SHA-256("action_hash|timestamp|actor") with the timestamp in
// RFC 3339 UTC with nanoseconds.
func LeafHash(e attestationDomain.Event) []byte {
	h := sha256.New()
	h.Write([]byte(e.ActionHash))
	h.Write([]byte("|"))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte("|"))
	h.Write([]byte(e.Actor))
	return h.Sum(nil)
}

// ComputeRoot combines leaves pairwise bottom-up as SHA-256(left||right). A level
// with an odd number of nodes pairs its last node with itself. The root of no
// leaves is SHA-256 of the empty string.
func ComputeRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}

	level := leaves
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level[:len(level):len(level)], level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return level[0]
}

// RootOf returns the hex Merkle root of events in order.
func RootOf(events []attestationDomain.Event) string {
	leaves := make([][]byte, len(events))
	for i, e := range events {
		leaves[i] = LeafHash(e)
	}
	return hex.EncodeToString(ComputeRoot(leaves))
}
