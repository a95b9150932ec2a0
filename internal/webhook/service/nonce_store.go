// Package service provides the nonce store backing webhook replay protection.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPurgeInterval is how often expired nonces are dropped.
const DefaultPurgeInterval = 60 * time.Second

// NonceStore remembers nonces until their expiry. A nonce can be accepted at most
// once while it is stored.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	now    func() time.Time
	logger *slog.Logger
}

// NewNonceStore creates an empty store.
func NewNonceStore(logger *slog.Logger) *NonceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NonceStore{
		nonces: make(map[string]time.Time),
		now:    time.Now,
		logger: logger,
	}
}

// CheckAndStore records nonce until expiry and reports true, or reports false when
// the nonce is already stored and not expired at now. Check and insert are atomic.
// now is the caller's clock, the same one that judged the request fresh.
func (s *NonceStore) CheckAndStore(nonce string, now, expiry time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.nonces[nonce]; ok && now.Before(exp) {
		return false
	}
	s.nonces[nonce] = expiry
	return true
}

// Purge drops nonces expired at now and returns how many were removed.
func (s *NonceStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for nonce, exp := range s.nonces {
		if !now.Before(exp) {
			delete(s.nonces, nonce)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored nonces.
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nonces)
}

// Run purges expired nonces every interval until ctx is done.
func (s *NonceStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Purge(s.now()); n > 0 {
				s.logger.Debug("purged expired nonces", slog.Int("count", n))
			}
		}
	}
}
