package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DekCacheEntry holds an unwrapped Data Encryption Key kept in memory between unwrap
// and use. Entries are never persisted and are zeroized on eviction or shutdown.
type DekCacheEntry struct {
	Key       []byte // Plaintext 32-byte DEK
	CreatedAt time.Time
}

// Expired reports whether the entry is older than ttl at now.
func (e *DekCacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}

// DekCacheKey builds the cache key for a wrapped DEK.
//
// Every envelope carries its own DEK, so the KEK reference alone cannot identify a
// cached key: the digest of the wrapped DEK disambiguates envelopes sharing a KEK.
func DekCacheKey(kekRef string, encryptedDEK []byte) string {
	sum := sha256.Sum256(encryptedDEK)
	return kekRef + ":" + hex.EncodeToString(sum[:])
}
