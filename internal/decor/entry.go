// Package decor assembles scanner output into one ordered, non-overlapping
// decoration sequence.
//
// Entries come in two scopes. Line-scoped entries (LineClass) tag a whole
// line and sit at the line's start offset. Range-scoped entries (Hide,
// Replace, Mark) cover a non-empty byte range. The resolved sequence is
// sorted by start offset, line-scoped before range-scoped at equal start,
// then by end offset, and no two range-scoped entries overlap.
package decor

import (
	"fmt"

	"github.com/dshills/livemark/internal/scan"
	"github.com/dshills/livemark/internal/scan/inline"
)

// Kind is the type of a decoration entry.
type Kind uint8

const (
	// KindLineClass tags a line with a style class.
	KindLineClass Kind = iota

	// KindHide hides a range of syntax.
	KindHide

	// KindReplace replaces a range with a widget.
	KindReplace

	// KindMark styles a visible range.
	KindMark
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLineClass:
		return "line"
	case KindHide:
		return "hide"
	case KindReplace:
		return "replace"
	case KindMark:
		return "mark"
	default:
		return "unknown"
	}
}

// LineScoped reports whether entries of this kind apply to a whole line.
func (k Kind) LineScoped() bool {
	return k == KindLineClass
}

// WidgetKind identifies the renderer a Replace entry binds to.
type WidgetKind uint8

const (
	WidgetCallout WidgetKind = iota
	WidgetQuery
	WidgetHabit
	WidgetFrontmatter
	WidgetEmbed
	WidgetTask
	WidgetBullet
)

// String returns the string representation of the widget kind.
func (k WidgetKind) String() string {
	switch k {
	case WidgetCallout:
		return "callout"
	case WidgetQuery:
		return "query"
	case WidgetHabit:
		return "habit"
	case WidgetFrontmatter:
		return "frontmatter"
	case WidgetEmbed:
		return "embed"
	case WidgetTask:
		return "task"
	case WidgetBullet:
		return "bullet"
	default:
		return "unknown"
	}
}

// Async reports whether widgets of this kind resolve external data.
func (k WidgetKind) Async() bool {
	switch k {
	case WidgetQuery, WidgetHabit, WidgetEmbed:
		return true
	}
	return false
}

// WidgetSpec describes the widget a Replace entry stands for.
type WidgetSpec struct {
	// Key is the widget identity: kind, content hash of Raw and the ordinal
	// among equal content. Instances are reused while the key is unchanged.
	Key string

	Kind WidgetKind

	// Raw is the source text the widget is bound to.
	Raw string

	// Line is the first line the widget replaces.
	Line int

	// Block is set for block widgets.
	Block *scan.Block

	// Token is set for inline widgets.
	Token *inline.Token

	// Collapsed is set for callouts rendered in their collapsed form.
	Collapsed bool
}

// WidgetKey builds a widget identity key.
func WidgetKey(kind WidgetKind, raw string, ordinal int) string {
	return fmt.Sprintf("%s:%s#%d", kind, scan.ContentHash(raw), ordinal)
}

// Entry is one decoration instruction. Offsets are absolute byte offsets
// into the document; To is exclusive.
type Entry struct {
	From int
	To   int
	Kind Kind

	// Source names the scanner that produced the entry.
	Source string

	// Class is the style class for LineClass and Mark entries.
	Class string

	// Target is the link target of a Mark, if any.
	Target string

	// Widget is set for Replace entries.
	Widget *WidgetSpec

	// Block marks a Replace entry that covers whole lines.
	Block bool
}

// String returns a compact representation used in logs and test output.
func (e Entry) String() string {
	s := fmt.Sprintf("%s[%d:%d)", e.Kind, e.From, e.To)
	if e.Class != "" {
		s += " ." + e.Class
	}
	if e.Widget != nil {
		s += " " + e.Widget.Key
	}
	return s
}

// Viewport is the visible line window, inclusive on both ends.
type Viewport struct {
	FromLine int
	ToLine   int
}

// All returns a viewport covering every line.
func All() Viewport {
	return Viewport{FromLine: 0, ToLine: int(^uint(0) >> 1)}
}

// Contains reports whether line n is visible.
func (v Viewport) Contains(n int) bool {
	return n >= v.FromLine && n <= v.ToLine
}

// Intersects reports whether any line in start..end is visible.
func (v Viewport) Intersects(start, end int) bool {
	return start <= v.ToLine && end >= v.FromLine
}
