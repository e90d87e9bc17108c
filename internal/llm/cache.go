// File path: internal/llm/cache.go
package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const defaultCacheEntries = 512

// Cache is a bounded, content-addressed response cache. Entries are keyed by
// a stable hash of (provider, model, temperature, prompt), so concurrent
// generation runs share hits safely. No persistence across restarts.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	max     int
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

type cacheEntry struct {
	content  string
	storedAt time.Time
}

// CacheOption adjusts cache construction.
type CacheOption func(*Cache)

// WithCacheSize bounds the entry count.
func WithCacheSize(max int) CacheOption {
	return func(c *Cache) {
		if max > 0 {
			c.max = max
		}
	}
}

// WithTTL expires entries after d. Zero disables expiry.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = d }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache builds a cache with the given options.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		max:     defaultCacheEntries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey hashes the call identity fields into a stable key.
func CacheKey(provider, model string, temperature float64, prompt string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%.4f\x00%s", provider, model, temperature, prompt)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached content for key, if present and fresh.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if ok && c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.dropLocked(key)
		ok = false
	}
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	return entry.content, true
}

// Put stores content under key, evicting the oldest entry at capacity.
func (c *Cache) Put(key, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{content: content, storedAt: c.now()}
}

// dropLocked removes key from both the entry map and the eviction order.
// Leaving an expired key in order would make a later re-Put evict a fresh
// entry in its place.
func (c *Cache) dropLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// CacheStats is a point-in-time counter snapshot.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Stats snapshots the hit/miss counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
