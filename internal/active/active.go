// Package active derives the set of lines touched by the current selection.
//
// Active lines are always rendered as raw source. The tracker is a pure
// function of the document and selection and runs at the start of every pass.
package active

import (
	"sort"

	"github.com/dshills/livemark/internal/document"
)

// LineSet is an immutable set of line numbers.
type LineSet struct {
	lines map[int]struct{}
}

// Lines returns every line spanned by every range of sel, inclusive of both ends.
// A range ending exactly at the start of a line still touches that line, which
// matches how a cursor placed at column zero activates its own line.
func Lines(doc *document.Document, sel document.Selection) LineSet {
	set := LineSet{lines: make(map[int]struct{})}
	if doc == nil {
		return set
	}
	for _, r := range sel.Ranges {
		first := doc.LineAt(r.From)
		last := doc.LineAt(r.To)
		for n := first; n <= last; n++ {
			set.lines[n] = struct{}{}
		}
	}
	return set
}

// Of builds a set from explicit line numbers.
func Of(lines ...int) LineSet {
	set := LineSet{lines: make(map[int]struct{}, len(lines))}
	for _, n := range lines {
		set.lines[n] = struct{}{}
	}
	return set
}

// Has returns true if line n is active.
func (s LineSet) Has(n int) bool {
	_, ok := s.lines[n]
	return ok
}

// Len returns the number of active lines.
func (s LineSet) Len() int {
	return len(s.lines)
}

// Intersects returns true if any line in start..end inclusive is active.
func (s LineSet) Intersects(start, end int) bool {
	if end-start+1 > len(s.lines) {
		for n := range s.lines {
			if n >= start && n <= end {
				return true
			}
		}
		return false
	}
	for n := start; n <= end; n++ {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Sorted returns the active lines in ascending order.
func (s LineSet) Sorted() []int {
	out := make([]int, 0, len(s.lines))
	for n := range s.lines {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Equal reports whether both sets hold the same lines.
func (s LineSet) Equal(other LineSet) bool {
	if len(s.lines) != len(other.lines) {
		return false
	}
	for n := range s.lines {
		if !other.Has(n) {
			return false
		}
	}
	return true
}
