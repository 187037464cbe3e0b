package cache

import (
	"testing"
	"time"
)

func TestLRU_SetGet(t *testing.T) {
	c := NewLRU[string](4, time.Minute)
	c.Set("a", "1", 0)

	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key reported present")
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // a is now the most recent
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should have survived")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry reported present")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after expiry read, want 0", c.Len())
	}
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("a", 2, 0)
	v, _ := c.Get("a")
	if v != 2 {
		t.Fatalf("updated value = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestLRU_Purge(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("Len = %d after purge", c.Len())
	}
}
