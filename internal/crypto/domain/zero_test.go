package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{name: "nil", in: nil},
		{name: "empty", in: []byte{}},
		{name: "dek sized", in: []byte("0123456789abcdef0123456789abcdef")},
		{name: "sub slice", in: []byte("abcdef")[2:4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() { Zero(tt.in) })
			assert.True(t, IsZero(tt.in))
		})
	}

	t.Run("only the slice window is cleared", func(t *testing.T) {
		backing := []byte("abcdef")
		Zero(backing[2:4])
		assert.Equal(t, []byte{'a', 'b', 0, 0, 'e', 'f'}, backing)
	})
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero(make([]byte, 32)))
	assert.False(t, IsZero([]byte{0, 0, 1}))
	assert.False(t, IsZero([]byte{1, 0, 0}))
}
