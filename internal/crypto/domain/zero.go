package domain

import "bytes"

// Zero overwrites b with zeros. Key material is zeroed as soon as it is no longer
// needed; the garbage collector may still hold earlier copies.
func Zero(b []byte) {
	clear(b)
}

// IsZero reports whether b holds only zero bytes. An empty slice is zero.
func IsZero(b []byte) bool {
	return len(bytes.TrimLeft(b, "\x00")) == 0
}
