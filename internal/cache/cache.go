// Package cache provides TTL caches for externally resolved widget content.
//
// Entries are content-addressed: the key is the raw block configuration, so
// identical configuration always hits the same entry. Expired entries are
// evicted lazily on lookup. Invalidation works by exact key, by key prefix,
// or for the whole cache.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

// Entry is a cached value with the time it was stored.
type Entry[V any] struct {
	Key     string
	Value   V
	Written time.Time
}

// Cache is a TTL cache safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]Entry[V]

	// Stats (atomic for access without holding the lock)
	hits          atomic.Uint64
	misses        atomic.Uint64
	expirations   atomic.Uint64
	invalidations atomic.Uint64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock sets the time source.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache whose entries live for ttl. A ttl of zero disables
// caching: every lookup misses.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]Entry[V]),
	}
}

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// SetTTL changes the lifetime. Existing entries are judged by the new value.
func (c *Cache[V]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Get returns the value for key if present and fresh. A stale entry is
// removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if c.now().Sub(e.Written) >= c.ttl {
		delete(c.entries, key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.Value, true
}

// Set stores value under key.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[V]{Key: key, Value: value, Written: c.now()}
}

// Invalidate removes key. It reports whether an entry was removed.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.invalidations.Add(1)
	return true
}

// InvalidatePrefix removes every key starting with prefix and returns the count.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	c.invalidations.Add(uint64(n))
	return n
}

// Clear removes every entry and returns the count.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]Entry[V])
	c.invalidations.Add(uint64(n))
	return n
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats holds cache counters.
type Stats struct {
	Entries       int
	Hits          uint64
	Misses        uint64
	Expirations   uint64
	Invalidations uint64
}

// HitRate returns hits over lookups, or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Expirations:   c.expirations.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
