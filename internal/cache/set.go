package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/dshills/livemark/internal/resolve"
)

// Default lifetimes per widget kind.
const (
	DefaultQueryTTL = 5 * time.Second
	DefaultHabitTTL = 5 * time.Second
	DefaultEmbedTTL = 30 * time.Second
)

// TTLs holds the lifetime for each kind.
type TTLs struct {
	Query time.Duration
	Habit time.Duration
	Embed time.Duration
}

// DefaultTTLs returns the default lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Query: DefaultQueryTTL,
		Habit: DefaultHabitTTL,
		Embed: DefaultEmbedTTL,
	}
}

// Set is the group of per-kind caches used by the widget runtime.
type Set struct {
	Query *Cache[*resolve.QueryResult]
	Habit *Cache[*resolve.HabitResult]
	Embed *Cache[*resolve.EmbedResult]
}

// NewSet creates one cache per kind.
func NewSet(ttls TTLs, opts ...Option) *Set {
	return &Set{
		Query: New[*resolve.QueryResult](ttls.Query, opts...),
		Habit: New[*resolve.HabitResult](ttls.Habit, opts...),
		Embed: New[*resolve.EmbedResult](ttls.Embed, opts...),
	}
}

// SetTTLs applies new lifetimes, as after a configuration reload.
func (s *Set) SetTTLs(ttls TTLs) {
	s.Query.SetTTL(ttls.Query)
	s.Habit.SetTTL(ttls.Habit)
	s.Embed.SetTTL(ttls.Embed)
}

// Clear empties every cache.
func (s *Set) Clear() {
	s.Query.Clear()
	s.Habit.Clear()
	s.Embed.Clear()
}

// EmbedKey builds the embed cache key. Keys start with the normalized
// target so a change to a note can invalidate every section and depth by
// prefix, whichever spelling the embed used.
func EmbedKey(target, section string, depth int) string {
	return EmbedPrefix(target) + section + "@" + strconv.Itoa(depth)
}

// EmbedPrefix returns the prefix shared by every embed key of target.
func EmbedPrefix(target string) string {
	return NormalizeTarget(target) + "#"
}

// NormalizeTarget folds the spellings of a note target that resolve to the
// same note: surrounding space, case and a trailing .md.
func NormalizeTarget(target string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(target)), ".md")
}
