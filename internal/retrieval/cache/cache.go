// Package cache memoizes fused search results for a bounded, time-bucketed
// window.
//
// The cache key is a pure function of the query text, tenant/project scope,
// normalized filters, and the current time bucket, so identical queries
// within one bucket hit deterministically. Entries expire on TTL, are
// evicted under LRU pressure, and can be invalidated per scope when
// underlying memory data changes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/koopa0/rae/internal/retrieval"
)

// Defaults for the cache configuration.
const (
	DefaultTTL      = 300 * time.Second
	DefaultBucket   = 60 * time.Second
	DefaultCapacity = 1024
)

// Cache implements retrieval.SearchCache over an expirable LRU. A secondary
// per-scope key index supports explicit invalidation without scanning.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	lru    *expirable.LRU[string, retrieval.CachedSearch]
	bucket time.Duration

	// mu guards the scope index; the LRU has its own internal locking.
	mu     sync.Mutex
	scopes map[string]map[string]struct{}
	keys   map[string]string // cache key -> scope, for eviction upkeep
}

// New creates a Cache. Non-positive arguments take the package defaults.
func New(capacity int, ttl, bucket time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if bucket <= 0 {
		bucket = DefaultBucket
	}

	c := &Cache{
		bucket: bucket,
		scopes: make(map[string]map[string]struct{}),
		keys:   make(map[string]string),
	}
	c.lru = expirable.NewLRU[string, retrieval.CachedSearch](capacity, c.onEvict, ttl)
	return c
}

// Get returns the memoized payload for the query in its current time bucket.
func (c *Cache) Get(q retrieval.SearchQuery, now time.Time) (retrieval.CachedSearch, bool) {
	return c.lru.Get(c.Key(q, now))
}

// Set memoizes a fused ranking under the query's current bucket key.
func (c *Cache) Set(q retrieval.SearchQuery, now time.Time, entry retrieval.CachedSearch) {
	key := c.Key(q, now)
	scope := scopeKey(q.Tenant, q.Project)

	c.mu.Lock()
	if c.scopes[scope] == nil {
		c.scopes[scope] = make(map[string]struct{})
	}
	c.scopes[scope][key] = struct{}{}
	c.keys[key] = scope
	c.mu.Unlock()

	c.lru.Add(key, entry)
}

// Invalidate drops every entry for one (tenant, project) scope. Memory-write
// paths call this whenever underlying data changes.
func (c *Cache) Invalidate(tenant, project string) {
	scope := scopeKey(tenant, project)

	c.mu.Lock()
	keys := make([]string, 0, len(c.scopes[scope]))
	for key := range c.scopes[scope] {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	// Remove outside the index lock; the eviction callback re-acquires it.
	for _, key := range keys {
		c.lru.Remove(key)
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Key derives the deterministic cache key: a SHA-256 over the canonicalized
// query inputs and the time-bucket index. No hidden state enters the key.
func (c *Cache) Key(q retrieval.SearchQuery, now time.Time) string {
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteByte(0)
	b.WriteString(q.Tenant)
	b.WriteByte(0)
	b.WriteString(q.Project)
	b.WriteByte(0)
	fmt.Fprintf(&b, "k=%d", q.TopK)
	b.WriteByte(0)
	b.WriteString(canonicalFilters(q.Filters))
	b.WriteByte(0)
	fmt.Fprintf(&b, "bucket=%d", now.UnixNano()/int64(c.bucket))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// onEvict keeps the scope index consistent with LRU/TTL eviction. Must not
// call back into the LRU.
func (c *Cache) onEvict(key string, _ retrieval.CachedSearch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scope, ok := c.keys[key]
	if !ok {
		return
	}
	delete(c.keys, key)
	if set := c.scopes[scope]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(c.scopes, scope)
		}
	}
}

// canonicalFilters renders filters in a stable order so logically identical
// filter sets produce identical keys.
func canonicalFilters(f retrieval.Filters) string {
	var parts []string

	if f.TimeRange != nil {
		parts = append(parts, fmt.Sprintf("t=%d..%d", f.TimeRange.Start.UnixNano(), f.TimeRange.End.UnixNano()))
	}
	if len(f.Tags) > 0 {
		tags := make([]string, len(f.Tags))
		copy(tags, f.Tags)
		sort.Strings(tags)
		parts = append(parts, "tags="+strings.Join(tags, ","))
	}
	if f.MinImportance > 0 {
		parts = append(parts, fmt.Sprintf("imp=%g", f.MinImportance))
	}
	return strings.Join(parts, ";")
}

func scopeKey(tenant, project string) string {
	return tenant + "\x00" + project
}
