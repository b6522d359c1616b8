package document

import (
	"sort"
	"strings"
)

// Line is one line of a document.
type Line struct {
	// Number is the zero-based line number.
	Number int

	// From is the byte offset of the first character of the line.
	From int

	// To is the byte offset just past the last character, excluding the newline.
	To int

	// Text is the line content without the newline.
	Text string
}

// Range returns the byte range of the line.
func (l Line) Range() Range {
	return Range{From: l.From, To: l.To}
}

// Document is an immutable snapshot of the editor text.
type Document struct {
	text    string
	starts  []int
	version uint64
}

// New creates a document snapshot at the given version.
func New(text string, version uint64) *Document {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Document{text: text, starts: starts, version: version}
}

// Text returns the full document text.
func (d *Document) Text() string {
	return d.text
}

// Len returns the document length in bytes.
func (d *Document) Len() int {
	return len(d.text)
}

// Version returns the version counter of this snapshot.
func (d *Document) Version() uint64 {
	return d.version
}

// LineCount returns the number of lines. An empty document has one empty line.
func (d *Document) LineCount() int {
	return len(d.starts)
}

// Line returns line n. Out-of-range numbers are clamped.
func (d *Document) Line(n int) Line {
	if n < 0 {
		n = 0
	}
	if n >= len(d.starts) {
		n = len(d.starts) - 1
	}
	from := d.starts[n]
	to := len(d.text)
	if n+1 < len(d.starts) {
		to = d.starts[n+1] - 1
	}
	if to > from && d.text[to-1] == '\r' {
		to--
	}
	return Line{Number: n, From: from, To: to, Text: d.text[from:to]}
}

// LineAt returns the number of the line containing offset.
func (d *Document) LineAt(offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= len(d.text) {
		return len(d.starts) - 1
	}
	// First start greater than offset, minus one.
	return sort.SearchInts(d.starts, offset+1) - 1
}

// Slice returns the text in r, clamped to the document bounds.
func (d *Document) Slice(r Range) string {
	from, to := clamp(r.From, len(d.text)), clamp(r.To, len(d.text))
	if to < from {
		return ""
	}
	return d.text[from:to]
}

// LinesText returns the raw text of lines start..end inclusive, joined with newlines.
func (d *Document) LinesText(start, end int) string {
	first := d.Line(start)
	last := d.Line(end)
	return d.text[first.From:last.To]
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
