package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an IP's limiter survives without requests.
	limiterIdleTTL = time.Hour

	// limiterSweepInterval is the minimum time between sweeps of idle limiters.
	limiterSweepInterval = 5 * time.Minute
)

// ipRateLimiterStore holds per-IP token buckets. Idle buckets are swept inline on
// access, so the store owns no goroutine.
type ipRateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*ipRateLimiterEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type ipRateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newIPRateLimiterStore(rps float64, burst int) *ipRateLimiterStore {
	return &ipRateLimiterStore{
		limiters:  make(map[string]*ipRateLimiterEntry),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// IPRateLimitMiddleware enforces a per-client-IP token bucket of rps requests per
// second with the given burst. Client IPs come from c.ClientIP(), so proxies must
// be configured as trusted for X-Forwarded-For to be honored.
//
// Rejected requests get 429 with a Retry-After header in seconds.
func IPRateLimitMiddleware(rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := newIPRateLimiterStore(rps, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := store.getLimiter(clientIP)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := max(int(reservation.Delay().Seconds()), 1)
			reservation.Cancel()

			logger.Warn("ingress rate limit exceeded",
				slog.String("client_ip", clientIP),
				slog.String("path", c.FullPath()),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests from this IP. Please retry after the specified delay.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getLimiter returns the limiter for ip, creating it on first use.
func (s *ipRateLimiterStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweepInterval {
		s.sweepLocked(now)
	}

	if entry, ok := s.limiters[ip]; ok {
		entry.lastAccess = now
		return entry.limiter
	}

	entry := &ipRateLimiterEntry{
		limiter:    rate.NewLimiter(s.rps, s.burst),
		lastAccess: now,
	}
	s.limiters[ip] = entry
	return entry.limiter
}

func (s *ipRateLimiterStore) sweepLocked(now time.Time) {
	threshold := now.Add(-limiterIdleTTL)
	for ip, entry := range s.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(s.limiters, ip)
		}
	}
	s.lastSweep = now
}
