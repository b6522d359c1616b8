package decor

import "sort"

// Less reports whether a sorts before b: start offset ascending, line-scoped
// before range-scoped, end offset ascending. Remaining ties break on kind,
// source and class so the order is total.
func Less(a, b Entry) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if al, bl := a.Kind.LineScoped(), b.Kind.LineScoped(); al != bl {
		return al
	}
	if a.To != b.To {
		return a.To < b.To
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Class < b.Class
}

// Sort orders entries in place.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// Resolve sorts entries and removes conflicts. Empty range-scoped entries
// and exact duplicates are dropped. A range-scoped entry that overlaps an
// earlier accepted one is dropped; replacements are placed first so a
// widget always wins over styling inside its range.
func Resolve(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}

	candidates := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Kind.LineScoped() && e.To <= e.From {
			continue
		}
		candidates = append(candidates, e)
	}

	// Claim ranges by precedence, then emit in positional order.
	byPrecedence := append([]Entry(nil), candidates...)
	sort.SliceStable(byPrecedence, func(i, j int) bool {
		pi, pj := precedence(byPrecedence[i].Kind), precedence(byPrecedence[j].Kind)
		if pi != pj {
			return pi < pj
		}
		return Less(byPrecedence[i], byPrecedence[j])
	})

	var claimed []Entry
	out := make([]Entry, 0, len(candidates))
	for _, e := range byPrecedence {
		if e.Kind.LineScoped() {
			out = append(out, e)
			continue
		}
		if overlapsAny(claimed, e) {
			continue
		}
		claimed = append(claimed, e)
		out = append(out, e)
	}

	Sort(out)
	return dedupe(out)
}

func precedence(k Kind) int {
	switch k {
	case KindReplace:
		return 0
	case KindHide:
		return 1
	case KindMark:
		return 2
	default:
		return 3
	}
}

func overlapsAny(claimed []Entry, e Entry) bool {
	for _, c := range claimed {
		if e.From < c.To && c.From < e.To {
			return true
		}
	}
	return false
}

func dedupe(entries []Entry) []Entry {
	if len(entries) < 2 {
		return entries
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		last := out[len(out)-1]
		if e.Kind.LineScoped() && last.Kind.LineScoped() && e.From == last.From && e.Class == last.Class {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Validate checks ordering and exclusivity of a resolved sequence.
func Validate(entries []Entry) error {
	lastRangeEnd := -1
	for i, e := range entries {
		if !e.Kind.LineScoped() {
			if e.To <= e.From {
				return &EntryError{Index: i, Entry: e, Err: ErrEmptyRange}
			}
			if e.From < lastRangeEnd {
				return &EntryError{Index: i, Entry: e, Err: ErrOverlap}
			}
			lastRangeEnd = e.To
		}
		if i > 0 && Less(e, entries[i-1]) {
			return &EntryError{Index: i, Entry: e, Err: ErrUnordered}
		}
	}
	return nil
}
