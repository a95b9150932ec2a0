package domain

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// DateLayout is the layout of DailyMerkleRoot.Date.
	DateLayout = "2006-01-02"

	// FileDateLayout is the compact layout used in file names and URLs.
	FileDateLayout = "20060102"

	// MaxSegment bounds how many records a single day can hold.
	MaxSegment = 999
)

// DailyMerkleRoot summarizes one UTC day of events. Root is hex encoded.
//
// A day normally has one record, segment 0. A process that starts after the day was
// already stored elsewhere cannot recompute that record, so it seals its own events
// into the next free segment instead of replacing it.
type DailyMerkleRoot struct {
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

// Key identifies the record: the date, suffixed with "#N" for segments after the first.
func (r *DailyMerkleRoot) Key() string {
	if r.Segment == 0 {
		return r.Date
	}
	return r.Date + "#" + strconv.Itoa(r.Segment)
}

// ValidateSegment rejects segments outside [0, MaxSegment].
func ValidateSegment(segment int) error {
	if segment < 0 || segment > MaxSegment {
		return fmt.Errorf("%w: segment %d", ErrInvalidSegment, segment)
	}
	return nil
}

// Day returns the UTC date of t in DateLayout.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts YYYY-MM-DD or YYYYMMDD and returns the date in DateLayout.
func ParseDate(s string) (string, error) {
	for _, layout := range []string{DateLayout, FileDateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// CompactDate converts a DateLayout date to FileDateLayout.
func CompactDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format(FileDateLayout), nil
}
