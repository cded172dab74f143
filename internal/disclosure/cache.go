package disclosure

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// CacheConfig configures a Cache.
type CacheConfig struct {
	Enabled           bool
	MaxSize           int
	L1TTL             time.Duration
	CleanupInterval   time.Duration
}

// DefaultCacheConfig returns the documented defaults (max_size=2000,
// l1_ttl_ms=300000, cleanup_interval_ms=300000).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:         true,
		MaxSize:         2000,
		L1TTL:           300 * time.Second,
		CleanupInterval: 300 * time.Second,
	}
}

type cacheEntry struct {
	content   *Content
	expiresAt time.Time
}

// Content pairs a DisclosureContent with the id it belongs to, so
// invalidate(id) can scan by prefix without re-parsing the key.
type Content struct {
	ID      string
	Payload any
}

// Stats reports cache hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// Cache is the per-(tool, level) disclosure-content cache. Eviction
// combines TTL expiry with LRU-by-soonest-expires_at under size pressure,
// per spec §4.5 — a contract the hashicorp LRU's pure recency ordering
// cannot express, so this is a small hand-rolled map+mutex cache in the
// same texture as the reference's other caches.
type Cache struct {
	cfg CacheConfig

	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    int64
	misses  int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewCache constructs a Cache and starts its periodic sweeper if
// cfg.CleanupInterval > 0.
func NewCache(cfg CacheConfig) *Cache {
	c := &Cache{
		cfg:       cfg,
		entries:   make(map[string]*cacheEntry),
		stopSweep: make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go c.sweep()
	}
	return c
}

// CompositeKey builds the "id:level:hash" cache key. hash should
// summarize (id, name, description, version); pass "default" when no
// content-derived hash is available.
func CompositeKey(id, level, hash string) string {
	if hash == "" {
		hash = "default"
	}
	return fmt.Sprintf("%s:%s:%s", id, level, hash)
}

// ContentHash summarizes the fields whose change should invalidate a
// cached disclosure payload.
func ContentHash(id, name, description, version string) string {
	sum := md5.Sum([]byte(id + "|" + name + "|" + description + "|" + version))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached content for key, or (nil, false) on miss. A hit
// refreshes expires_at (touch-based LRU); an expired entry is evicted and
// counted as a miss.
func (c *Cache) Get(key string) (*Content, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.expiresAt = time.Now().Add(c.cfg.L1TTL)
	c.hits++
	return e.content, true
}

// Set inserts content under key, evicting the entry with the smallest
// expires_at if the cache is at capacity. ttlOverride, if non-zero,
// replaces the configured L1 TTL for this entry.
func (c *Cache) Set(key string, content *Content, ttlOverride time.Duration) {
	if !c.cfg.Enabled {
		return
	}
	ttl := c.cfg.L1TTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxSize {
		c.evictSoonest()
	}
	c.entries[key] = &cacheEntry{content: content, expiresAt: time.Now().Add(ttl)}
}

// evictSoonest removes the entry with the smallest expires_at. Caller
// must hold c.mu.
func (c *Cache) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(soonest) {
			victim = k
			soonest = e.expiresAt
			first = false
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Invalidate removes every entry whose composite key begins with "id:".
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := id + ":"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// Stats returns the current hit/miss/size counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.entries)}
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopSweep:
			return
		}
	}
}

// Dispose stops the sweeper and clears all entries. Idempotent.
func (c *Cache) Dispose() {
	c.sweepOnce.Do(func() {
		close(c.stopSweep)
	})
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}
