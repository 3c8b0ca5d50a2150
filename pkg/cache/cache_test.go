package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New[[]string]()

	c.Set("tags", []string{"Design", "Office"}, time.Minute)

	got, ok := c.Get("tags")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 2 || got[0] != "Design" {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestExpiry(t *testing.T) {
	c := New[int]()

	c.Set("counts", 42, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("counts"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMissAndDelete(t *testing.T) {
	c := New[string]()

	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected miss for absent key")
	}

	c.Set("k", "v", time.Minute)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after delete")
	}

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after clear")
	}
}
