package lru

import (
	"testing"

	"github.com/haukened/rr-proxy/internal/dns/domain"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist"
)

func TestDecisionCache_HitMissAndPut(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	d := domain.BlockDecision{Blocked: true, MatchedRule: "ads.example.com", Source: "list"}

	if _, ok := c.Get("ads.example.com"); ok {
		t.Fatalf("expected miss before put")
	}
	c.Put("ads.example.com", d)

	got, ok := c.Get("ads.example.com")
	if !ok || got != d {
		t.Fatalf("unexpected get: ok=%v got=%+v", ok, got)
	}

	want := blocklist.CacheStats{Capacity: 2, Size: 1, Hits: 1, Misses: 1}
	if s := c.Stats(); s != want {
		t.Fatalf("Stats = %+v, want %+v", s, want)
	}
}

func TestDecisionCache_EvictionAndPurge(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Put("a.example", domain.Allowed())
	c.Put("b.example", domain.Allowed())
	c.Put("c.example", domain.Allowed())

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a.example"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", s.Evictions)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len after purge = %d", c.Len())
	}
	if s := c.Stats(); s.Evictions != 3 {
		t.Fatalf("Evictions after purge = %d, want 3", s.Evictions)
	}
}

func TestDisabledCache(t *testing.T) {
	for _, size := range []int{0, -5} {
		c, err := New(size)
		if err != nil {
			t.Fatalf("New(%d) error: %v", size, err)
		}
		c.Put("a.example", domain.BlockDecision{Blocked: true})
		if _, ok := c.Get("a.example"); ok {
			t.Fatalf("disabled cache should always miss")
		}
		c.Purge()
		if c.Len() != 0 || c.Stats() != (blocklist.CacheStats{}) {
			t.Fatalf("disabled cache should report nothing")
		}
	}
}
