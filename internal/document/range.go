package document

import "fmt"

// Range represents a byte range in the document.
// From is inclusive, To is exclusive: [From, To).
type Range struct {
	From int
	To   int
}

// NewRange creates a new Range, normalizing reversed bounds.
func NewRange(from, to int) Range {
	if to < from {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.From, r.To)
}

// Len returns the length of the range in bytes.
func (r Range) Len() int {
	return r.To - r.From
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.From == r.To
}

// Contains returns true if the given offset is within the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.From && offset < r.To
}

// ContainsRange returns true if other lies entirely within r.
func (r Range) ContainsRange(other Range) bool {
	return other.From >= r.From && other.To <= r.To
}

// Overlaps returns true if the two ranges share at least one byte.
func (r Range) Overlaps(other Range) bool {
	return r.From < other.To && other.From < r.To
}

// Shift returns the range moved by delta bytes.
func (r Range) Shift(delta int) Range {
	return Range{From: r.From + delta, To: r.To + delta}
}
