package cache

import (
	"testing"
	"time"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_Expiry(t *testing.T) {
	c := NewLRU[int, string](10, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(1, "one")
	if _, ok := c.Get(1); !ok {
		t.Fatal("fresh entry should be returned")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(1); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be dropped, Len() = %d", c.Len())
	}
}

func TestLRU_DeleteAndPurge(t *testing.T) {
	c := NewLRU[string, int](5, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite failed, got %d", v)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d", c.Len())
	}
}
