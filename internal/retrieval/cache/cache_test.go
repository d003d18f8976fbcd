package cache

import (
	"testing"
	"time"

	"github.com/koopa0/rae/internal/retrieval"
)

func query(text, tenant, project string) retrieval.SearchQuery {
	return retrieval.SearchQuery{Text: text, Tenant: tenant, Project: project, TopK: 10}
}

func entry(ids ...string) retrieval.CachedSearch {
	results := make([]retrieval.FusedResult, len(ids))
	for i, id := range ids {
		results[i] = retrieval.FusedResult{ID: id}
	}
	return retrieval.CachedSearch{
		Results:    results,
		Weights:    retrieval.DefaultWeights(),
		Strategies: retrieval.Strategies(),
	}
}

func TestKeyDeterministic(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	now := time.Now()

	q := query("what changed", "t1", "p1")
	if c.Key(q, now) != c.Key(q, now) {
		t.Error("identical inputs produced different keys")
	}
}

func TestKeyVariesByInput(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	now := time.Unix(1000, 0)
	base := query("what changed", "t1", "p1")

	variants := []retrieval.SearchQuery{
		query("what changed?", "t1", "p1"),
		query("what changed", "t2", "p1"),
		query("what changed", "t1", "p2"),
	}
	differentK := base
	differentK.TopK = 20
	variants = append(variants, differentK)

	tagged := base
	tagged.Filters.Tags = []string{"infra"}
	variants = append(variants, tagged)

	baseKey := c.Key(base, now)
	for i, v := range variants {
		if c.Key(v, now) == baseKey {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}

// Logically identical filters produce identical keys regardless of the order
// the caller listed them in.
func TestKeyCanonicalizesFilters(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	now := time.Unix(1000, 0)

	a := query("q", "t1", "")
	a.Filters.Tags = []string{"beta", "alpha"}
	b := query("q", "t1", "")
	b.Filters.Tags = []string{"alpha", "beta"}

	if c.Key(a, now) != c.Key(b, now) {
		t.Error("tag order changed the cache key")
	}
}

func TestKeyChangesAcrossBuckets(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	q := query("q", "t1", "")

	inBucket := time.Unix(0, 0)
	sameBucket := inBucket.Add(30 * time.Second)
	nextBucket := inBucket.Add(61 * time.Second)

	if c.Key(q, inBucket) != c.Key(q, sameBucket) {
		t.Error("keys differ within one bucket")
	}
	if c.Key(q, inBucket) == c.Key(q, nextBucket) {
		t.Error("keys identical across buckets")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	now := time.Now()
	q := query("q", "t1", "p1")

	if _, ok := c.Get(q, now); ok {
		t.Fatal("hit on empty cache")
	}

	c.Set(q, now, entry("m1", "m2"))
	got, ok := c.Get(q, now)
	if !ok {
		t.Fatal("miss after Set")
	}
	if len(got.Results) != 2 || got.Results[0].ID != "m1" {
		t.Errorf("cached results = %v", got.Results)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(16, 50*time.Millisecond, time.Minute)
	now := time.Now()
	q := query("q", "t1", "")

	c.Set(q, now, entry("m1"))
	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get(q, now); ok {
		t.Error("hit after TTL expiry")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, time.Minute, time.Minute)
	now := time.Now()

	c.Set(query("a", "t1", ""), now, entry("m1"))
	c.Set(query("b", "t1", ""), now, entry("m2"))
	c.Set(query("c", "t1", ""), now, entry("m3"))

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want capacity 2", c.Len())
	}
	if _, ok := c.Get(query("a", "t1", ""), now); ok {
		t.Error("least recently used entry survived past capacity")
	}
	if _, ok := c.Get(query("c", "t1", ""), now); !ok {
		t.Error("newest entry evicted")
	}
}

func TestInvalidateScope(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	now := time.Now()

	c.Set(query("a", "t1", "p1"), now, entry("m1"))
	c.Set(query("b", "t1", "p1"), now, entry("m2"))
	c.Set(query("c", "t1", "p2"), now, entry("m3"))
	c.Set(query("d", "t2", "p1"), now, entry("m4"))

	c.Invalidate("t1", "p1")

	if _, ok := c.Get(query("a", "t1", "p1"), now); ok {
		t.Error("invalidated entry still served")
	}
	if _, ok := c.Get(query("b", "t1", "p1"), now); ok {
		t.Error("invalidated entry still served")
	}
	if _, ok := c.Get(query("c", "t1", "p2"), now); !ok {
		t.Error("other project's entry was invalidated")
	}
	if _, ok := c.Get(query("d", "t2", "p1"), now); !ok {
		t.Error("other tenant's entry was invalidated")
	}
}

func TestInvalidateUnknownScope(t *testing.T) {
	c := New(16, time.Minute, time.Minute)
	c.Invalidate("ghost", "scope") // must not panic
}

func TestConcurrentAccess(t *testing.T) {
	c := New(64, time.Minute, time.Minute)
	now := time.Now()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			texts := []string{"a", "b", "c", "d"}
			for j := 0; j < 200; j++ {
				q := query(texts[j%len(texts)], "t1", "p1")
				c.Set(q, now, entry("m"))
				c.Get(q, now)
				if j%50 == 0 {
					c.Invalidate("t1", "p1")
				}
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
