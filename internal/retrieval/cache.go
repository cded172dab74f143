package retrieval

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/suntianc/toolcore/internal/model"
)

const maxQueryCacheEntries = 1000

// QueryCache is the bounded, TTL-based cache of finalized (post-fusion,
// post-disclosure) result lists keyed by query shape. Every entry shares
// one configured TTL (the engine only ever calls Set with cfg.CacheTTL),
// so golang-lru/v2's expirable.LRU — already a dependency via
// internal/pool's connection table — covers both the size bound and the
// expiry in one structure, in place of a hand-rolled map+mutex.
type QueryCache struct {
	lru *expirable.LRU[string, []model.UnifiedResult]
	ttl time.Duration
}

// NewQueryCache constructs an empty QueryCache whose entries expire after ttl.
func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		lru: expirable.NewLRU[string, []model.UnifiedResult](maxQueryCacheEntries, nil, ttl),
		ttl: ttl,
	}
}

// Key builds the MD5 cache key over (query, sorted tags, limit,
// disclosure level or "auto", min_score, force_level).
func Key(query string, tags []string, limit int, level string, minScore float64, forceLevel bool) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	if level == "" {
		level = "auto"
	}
	raw := fmt.Sprintf("%s|%v|%d|%s|%.6f|%t", query, sorted, limit, level, minScore, forceLevel)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Get returns a non-expired cached entry, or (nil, false) on miss/expiry.
func (c *QueryCache) Get(key string) ([]model.UnifiedResult, bool) {
	return c.lru.Get(key)
}

// Set stores results under key, evicting the least-recently-used entry if
// the cache is at its bound. ttl is accepted for API continuity with
// callers that pass the engine's configured CacheTTL, but every entry
// shares the TTL the cache was constructed with.
func (c *QueryCache) Set(key string, results []model.UnifiedResult, ttl time.Duration) {
	c.lru.Add(key, results)
}

// Clear empties the cache.
func (c *QueryCache) Clear() {
	c.lru.Purge()
}

// Len reports the current entry count.
func (c *QueryCache) Len() int {
	return c.lru.Len()
}
