package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/trustcore/internal/errors"
)

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6, time.FixedZone("x", 3600))
	md := map[string]string{"vendor": "shopify"}

	e := NewEvent(ActionWebhookReceived, "webhook:shopify", []byte("payload"), md, now)

	require.NoError(t, e.Validate())
	assert.Equal(t, HashAction(ActionWebhookReceived, []byte("payload")), e.ActionHash)
	assert.Len(t, e.ActionHash, 64)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.True(t, now.Equal(e.Timestamp))
	assert.Equal(t, "webhook_received", e.Metadata["action"])
	assert.Equal(t, "shopify", e.Metadata["vendor"])
	assert.NotContains(t, md, "action")
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"missing action hash", Event{Timestamp: time.Now(), Actor: "a"}},
		{"missing actor", Event{ActionHash: "h", Timestamp: time.Now()}},
		{"missing timestamp", Event{ActionHash: "h", Actor: "a"}},
		{"actor with whitespace", Event{ActionHash: "h", Timestamp: time.Now(), Actor: " a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2026-01-02", "2026-01-02", false},
		{"20260102", "2026-01-02", false},
		{"2026/01/02", "", true},
		{"20261302", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDayAndCompactDate(t *testing.T) {
	ts := time.Date(2026, 1, 1, 23, 30, 0, 0, time.FixedZone("minus2", -2*3600))
	assert.Equal(t, "2026-01-02", Day(ts))

	c, err := CompactDate("2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, "20260102", c)
}

func TestDailyMerkleRoot_Key(t *testing.T) {
	assert.Equal(t, "2026-05-01", (&DailyMerkleRoot{Date: "2026-05-01"}).Key())
	assert.Equal(t, "2026-05-01#2", (&DailyMerkleRoot{Date: "2026-05-01", Segment: 2}).Key())
}

func TestValidateSegment(t *testing.T) {
	assert.NoError(t, ValidateSegment(0))
	assert.NoError(t, ValidateSegment(MaxSegment))
	assert.ErrorIs(t, ValidateSegment(-1), ErrInvalidSegment)
	assert.ErrorIs(t, ValidateSegment(MaxSegment+1), ErrInvalidSegment)
}
