package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	cryptoDomain "github.com/allisson/trustcore/internal/crypto/domain"
)

// DefaultDekCacheTTL is how long an unwrapped DEK stays in memory.
const DefaultDekCacheTTL = 24 * time.Hour

// DekLoader unwraps a DEK on a cache miss. The cache takes ownership of the returned slice.
type DekLoader func(ctx context.Context) ([]byte, error)

type dekCacheItem struct {
	mu      sync.RWMutex
	entry   cryptoDomain.DekCacheEntry
	evicted bool
}

// DekCache keeps unwrapped DEKs in memory for a bounded time.
//
// Readers use a DEK under the item's read lock and eviction takes the write lock
// before zeroizing, so a key is never wiped while a decrypt is using it. Concurrent
// misses for the same key share a single unwrap.
type DekCache struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	items  map[string]*dekCacheItem
	closed bool

	group singleflight.Group

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDekCache creates an empty cache. A zero ttl means DefaultDekCacheTTL.
func NewDekCache(ttl time.Duration, logger *slog.Logger) *DekCache {
	if ttl <= 0 {
		ttl = DefaultDekCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DekCache{
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		items:  make(map[string]*dekCacheItem),
		stop:   make(chan struct{}),
	}
}

// StartJanitor evicts expired entries every interval until Close. Calling it more
// than once has no effect.
func (c *DekCache) StartJanitor(interval time.Duration) {
	c.mu.Lock()
	if c.done != nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if n := c.EvictExpired(); n > 0 {
					c.logger.Debug("evicted expired deks", slog.Int("count", n))
				}
			}
		}
	}()
}

// Use calls fn with the DEK cached under key, loading it with load on a miss.
// fn must not retain the slice after it returns.
func (c *DekCache) Use(
	ctx context.Context,
	key string,
	load DekLoader,
	fn func(dek []byte) error,
) error {
	for {
		item, err := c.lookup(ctx, key, load)
		if err != nil {
			return err
		}

		item.mu.RLock()
		if item.evicted {
			// lost a race with eviction; reload
			item.mu.RUnlock()
			continue
		}
		err = fn(item.entry.Key)
		item.mu.RUnlock()
		return err
	}
}

func (c *DekCache) lookup(ctx context.Context, key string, load DekLoader) (*dekCacheItem, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, cryptoDomain.ErrCacheClosed
	}
	item, ok := c.items[key]
	if ok && item.entry.Expired(c.now(), c.ttl) {
		delete(c.items, key)
		c.mu.Unlock()
		c.evict(item)
		ok = false
	} else {
		c.mu.Unlock()
	}
	if ok {
		return item, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		dek, err := load(ctx)
		if err != nil {
			return nil, err
		}
		item := &dekCacheItem{entry: cryptoDomain.DekCacheEntry{Key: dek, CreatedAt: c.now()}}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			cryptoDomain.Zero(dek)
			return nil, cryptoDomain.ErrCacheClosed
		}
		c.items[key] = item
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dekCacheItem), nil
}

func (c *DekCache) evict(item *dekCacheItem) {
	item.mu.Lock()
	defer item.mu.Unlock()
	cryptoDomain.Zero(item.entry.Key)
	item.evicted = true
}

// EvictExpired removes and zeroizes every entry older than the TTL.
func (c *DekCache) EvictExpired() int {
	now := c.now()

	c.mu.Lock()
	var expired []*dekCacheItem
	for key, item := range c.items {
		if item.entry.Expired(now, c.ttl) {
			expired = append(expired, item)
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	for _, item := range expired {
		c.evict(item)
	}
	return len(expired)
}

// Len returns the number of cached DEKs.
func (c *DekCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the janitor and zeroizes every cached DEK before returning. It waits
// for in-flight Use callbacks to finish. The cache rejects all calls afterwards.
func (c *DekCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	c.closed = true
	items := c.items
	c.items = make(map[string]*dekCacheItem)
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	for _, item := range items {
		c.evict(item)
	}
	if len(items) > 0 {
		c.logger.Info("dek cache zeroized", slog.Int("count", len(items)))
	}
}
