package pricing

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds snapshot staleness for listing display.
const DefaultTTL = 60 * time.Second

// Loader produces a fresh snapshot from the backing store.
type Loader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Cache holds the current snapshot and rebuilds it on TTL expiry. Concurrent
// callers hitting an expired snapshot share a single in-flight load. The
// clock is injected so expiry is deterministic in tests.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	snap      *Snapshot
	fetchedAt time.Time
}

// NewCache builds a cache around the loader. A zero ttl falls back to
// DefaultTTL; a nil clock falls back to time.Now.
func NewCache(loader Loader, ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{loader: loader, ttl: ttl, now: now}
}

// Get returns the cached snapshot, loading a fresh one when missing or
// expired. On load failure no stale snapshot is served; the error propagates.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do("pricing_snapshot", func() (any, error) {
		// A caller that queued behind the winning load finds the snapshot
		// already refreshed.
		if snap := c.fresh(); snap != nil {
			return snap, nil
		}
		snap, err := c.loader.LoadSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = snap
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot so the next Get reloads. CMS writes
// call this to shorten the staleness window after a discount change.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *Cache) fresh() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil
	}
	return c.snap
}
