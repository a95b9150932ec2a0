package service

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	attestationDomain "github.com/allisson/trustcore/internal/attestation/domain"
)

func h(parts ...[]byte) []byte {
	d := sha256.New()
	for _, p := range parts {
		d.Write(p)
	}
	return d.Sum(nil)
}

func testEvents(n int) []attestationDomain.Event {
	base := time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC)
	events := make([]attestationDomain.Event, n)
	for i := range events {
		events[i] = attestationDomain.Event{
			ActionHash: attestationDomain.HashAction("secret_read", []byte{byte(i)}),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			Actor:      "svc-billing",
		}
	}
	return events
}

func TestLeafHash(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 5, time.FixedZone("plus3", 3*3600))
	e := attestationDomain.Event{ActionHash: "abc", Timestamp: ts, Actor: "alice"}

	want := h([]byte("abc|2026-05-01T09:00:00.000000005Z|alice"))
	assert.Equal(t, want, LeafHash(e))
}

func TestComputeRoot(t *testing.T) {
	a, b, c := h([]byte("a")), h([]byte("b")), h([]byte("c"))

	tests := []struct {
		name   string
		leaves [][]byte
		want   []byte
	}{
		{"empty", nil, h()},
		{"single leaf is the root", [][]byte{a}, a},
		{"two leaves", [][]byte{a, b}, h(a, b)},
		{"odd count duplicates last", [][]byte{a, b, c}, h(h(a, b), h(c, c))},
		{"four leaves", [][]byte{a, b, c, a}, h(h(a, b), h(c, a))},
		{
			"five leaves",
			[][]byte{a, b, c, a, b},
			h(h(h(a, b), h(c, a)), h(h(b, b), h(b, b))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeRoot(tt.leaves))
		})
	}
}

func TestComputeRoot_DoesNotMutateInput(t *testing.T) {
	leaves := make([][]byte, 3, 4)
	leaves[0], leaves[1], leaves[2] = h([]byte("a")), h([]byte("b")), h([]byte("c"))
	spare := leaves[:4]
	spare[3] = []byte("untouched")

	ComputeRoot(leaves)
	assert.Equal(t, []byte("untouched"), spare[3])
}

func TestRootOf_SensitiveToOrderAndContent(t *testing.T) {
	events := testEvents(5)
	root := RootOf(events)
	assert.Len(t, root, 64)
	assert.Equal(t, root, RootOf(testEvents(5)))

	swapped := testEvents(5)
	swapped[1], swapped[2] = swapped[2], swapped[1]
	assert.NotEqual(t, root, RootOf(swapped))

	assert.NotEqual(t, root, RootOf(events[:4]))

	altered := testEvents(5)
	altered[3].Actor = "mallory"
	assert.NotEqual(t, root, RootOf(altered))

	empty := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(empty[:]), RootOf(nil))
}
