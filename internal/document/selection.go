package document

// Selection is the set of selected ranges. A cursor is an empty range.
type Selection struct {
	Ranges []Range
}

// NewSelection creates a selection from the given ranges.
func NewSelection(ranges ...Range) Selection {
	out := make([]Range, len(ranges))
	for i, r := range ranges {
		out[i] = NewRange(r.From, r.To)
	}
	return Selection{Ranges: out}
}

// Cursor creates a selection holding a single cursor at offset.
func Cursor(offset int) Selection {
	return Selection{Ranges: []Range{{From: offset, To: offset}}}
}

// IsEmpty returns true if the selection holds no ranges at all.
func (s Selection) IsEmpty() bool {
	return len(s.Ranges) == 0
}

// Equal reports whether two selections hold the same ranges in the same order.
func (s Selection) Equal(other Selection) bool {
	if len(s.Ranges) != len(other.Ranges) {
		return false
	}
	for i := range s.Ranges {
		if s.Ranges[i] != other.Ranges[i] {
			return false
		}
	}
	return true
}
