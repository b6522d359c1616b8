package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC)}
}

func TestCacheTTL(t *testing.T) {
	clk := newClock()
	c := New[string](5*time.Second, WithClock(clk.now))

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}

	clk.advance(4 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired early")
	}

	clk.advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire at the TTL")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be evicted on lookup")
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Expirations != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCacheLazyEviction(t *testing.T) {
	clk := newClock()
	c := New[int](time.Second, WithClock(clk.now))
	c.Set("a", 1)
	c.Set("b", 2)
	clk.advance(2 * time.Second)

	if c.Len() != 2 {
		t.Errorf("entries should stay until looked up, got %d", c.Len())
	}
	c.Get("a")
	if c.Len() != 1 {
		t.Errorf("Len() = %d after one lookup, want 1", c.Len())
	}
}

func TestCacheInvalidation(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("note-a#intro@0", 1)
	c.Set("note-a#@1", 2)
	c.Set("note-b#@0", 3)
	c.Set("other", 4)

	if !c.Invalidate("other") {
		t.Error("Invalidate() should report removal")
	}
	if c.Invalidate("other") {
		t.Error("second Invalidate() should report nothing removed")
	}
	if n := c.InvalidatePrefix(EmbedPrefix("note-a")); n != 2 {
		t.Errorf("InvalidatePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("note-b#@0"); !ok {
		t.Error("unrelated key was invalidated")
	}
	if n := c.Clear(); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if c.Stats().Invalidations != 4 {
		t.Errorf("invalidations = %d, want 4", c.Stats().Invalidations)
	}
}

func TestCacheZeroTTL(t *testing.T) {
	c := New[int](0)
	c.Set("k", 1)
	if _, ok := c.Get("k"); ok {
		t.Error("zero TTL should disable caching")
	}
}

func TestSetTTLs(t *testing.T) {
	clk := newClock()
	s := NewSet(DefaultTTLs(), WithClock(clk.now))
	if s.Embed.TTL() != 30*time.Second || s.Query.TTL() != 5*time.Second {
		t.Errorf("default TTLs = %v / %v", s.Query.TTL(), s.Embed.TTL())
	}

	s.Query.Set("cfg", nil)
	clk.advance(3 * time.Second)
	s.SetTTLs(TTLs{Query: 2 * time.Second, Habit: time.Second, Embed: time.Second})
	if _, ok := s.Query.Get("cfg"); ok {
		t.Error("shortened TTL should apply to existing entries")
	}

	for _, target := range []string{"note", "Note", "note.md", " Note.MD "} {
		if got := EmbedKey(target, "Intro", 2); got != "note#Intro@2" {
			t.Errorf("EmbedKey(%q) = %q, want %q", target, got, "note#Intro@2")
		}
	}
	if got := (Stats{Hits: 3, Misses: 1}).HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v", got)
	}
}
