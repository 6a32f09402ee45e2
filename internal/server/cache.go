package server

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ResponseCache is a concurrent-safe LRU cache of encoded responses with TTL
// expiration. The layer set is immutable once loaded, so a response for a
// property key stays valid until it expires.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	body        []byte
	contentType string
	createdAt   time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewResponseCache creates a cache with the given capacity and TTL. A
// capacity below one returns nil, which disables caching.
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	if maxEntries < 1 {
		return nil
	}
	return &ResponseCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func cacheKey(route, key string) string {
	return route + "/" + key
}

// Get returns a cached body and its content type. ok is false on a miss,
// on expiration, or when the cache is nil.
func (c *ResponseCache) Get(route, key string) (body []byte, contentType string, ok bool) {
	if c == nil {
		return nil, "", false
	}
	k := cacheKey(route, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[k]
	if !found {
		c.misses.Add(1)
		return nil, "", false
	}

	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, k)
		c.removeFromOrder(k)
		c.misses.Add(1)
		return nil, "", false
	}

	c.removeFromOrder(k)
	c.order = append(c.order, k)
	c.hits.Add(1)
	return entry.body, entry.contentType, true
}

// Put stores a body, evicting the oldest entry when at capacity.
func (c *ResponseCache) Put(route, key, contentType string, body []byte) {
	if c == nil {
		return
	}
	k := cacheKey(route, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[k]; ok {
		c.entries[k] = &cacheEntry{body: body, contentType: contentType, createdAt: time.Now()}
		c.removeFromOrder(k)
		c.order = append(c.order, k)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[k] = &cacheEntry{body: body, contentType: contentType, createdAt: time.Now()}
	c.order = append(c.order, k)
}

// Invalidate drops every entry cached under route.
func (c *ResponseCache) Invalidate(route string) {
	if c == nil {
		return
	}
	prefix := route + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, k := range c.order {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		} else {
			remaining = append(remaining, k)
		}
	}
	c.order = remaining
}

// Stats returns cache performance statistics. A nil cache reports zeros.
func (c *ResponseCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *ResponseCache) removeFromOrder(k string) {
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
