// Package cache memoizes completed page analyses per URL for a short
// time window, so rapid repeat scans of the same page don't burn backend
// calls or quota.
package cache

import (
	"sync"
	"time"

	"github.com/pageguard/pageguard/internal/analysis"
)

// DefaultTTL is how long an analysis stays servable.
const DefaultTTL = 5 * time.Minute

type entry struct {
	result   analysis.Result
	storedAt time.Time
}

// Cache is a mutex-guarded TTL map. Expired entries are evicted lazily
// on the next lookup for their key; Sweep exists as an optional
// hardening pass but the read-side contract never depends on it.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry

	// now is swappable for TTL tests.
	now func() time.Time
}

// New creates a cache with the given TTL (DefaultTTL when zero).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the fresh analysis for url, marked as served from cache.
// An expired entry is removed as a side effect and reported as a miss.
// The stored copy is never mutated; callers get an independent clone.
func (c *Cache) Get(url string) (analysis.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return analysis.Result{}, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, url)
		return analysis.Result{}, false
	}

	res := e.result.Clone()
	res.Cached = true
	return res, true
}

// Put stores the result for url, unconditionally replacing any previous
// entry. The cached flag is a read-time property and is cleared here.
func (c *Cache) Put(url string, res analysis.Result) {
	stored := res.Clone()
	stored.Cached = false

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = entry{result: stored, storedAt: c.now()}
}

// Sweep drops all expired entries and reports how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for url, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, url)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
