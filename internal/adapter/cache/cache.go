// Package cache provides the in-process weight cache. Entries are keyed by
// (warehouse region, item identifier) and expire lazily after a TTL; stale
// entries are treated as misses and overwritten by the next Put.
package cache

import (
	"sync"
	"time"

	"weighbridge/internal/domain"
)

// DefaultTTL is how long a resolved weight stays valid.
const DefaultTTL = 30 * time.Minute

type entry struct {
	value     domain.WeightValue
	createdAt time.Time
}

// WeightCache is a TTL map with coarse locking. Clear swaps the whole map,
// so it is safe to call concurrently with in-flight Get/Put; it does not
// cancel remote work already issued.
type WeightCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// Option customizes a WeightCache.
type Option func(*WeightCache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *WeightCache) { c.ttl = ttl }
}

// WithClock injects a time source. Used by tests to force expiry.
func WithClock(now func() time.Time) Option {
	return func(c *WeightCache) { c.now = now }
}

// New creates an empty weight cache.
func New(opts ...Option) *WeightCache {
	c := &WeightCache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func key(warehouseID string, itemID domain.ItemID) string {
	return warehouseID + "/" + string(itemID)
}

// Get returns the cached weight, or false when absent or expired.
func (c *WeightCache) Get(warehouseID string, itemID domain.ItemID) (domain.WeightValue, bool) {
	c.mu.RLock()
	e, ok := c.entries[key(warehouseID, itemID)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) >= c.ttl {
		return 0, false
	}
	return e.value, true
}

// Put stores a resolved weight. Entries are never mutated, only replaced;
// last writer wins, which is safe because the weight for an identifier is
// expected to be stable.
func (c *WeightCache) Put(warehouseID string, itemID domain.ItemID, w domain.WeightValue) {
	c.mu.Lock()
	c.entries[key(warehouseID, itemID)] = entry{value: w, createdAt: c.now()}
	c.mu.Unlock()
}

// Clear drops the whole store. Subsequent lookups miss.
func (c *WeightCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of entries, expired ones included.
func (c *WeightCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Compile-time interface check.
var _ domain.WeightCache = (*WeightCache)(nil)
