package widget

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Column widths are capped so one long value cannot stretch a table.
const (
	maxColumnWidth = 28
	kanbanWidth    = 22
	cardWidth      = 26
)

func width(s string) int {
	return uniseg.StringWidth(s)
}

// truncate shortens s to at most w cells, ending in ellipsis when cut.
func truncate(s string, w int, ellipsis string) string {
	if width(s) <= w {
		return s
	}
	ew := width(ellipsis)
	if w <= ew {
		return ellipsis
	}
	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cw := g.Width()
		if used+cw > w-ew {
			break
		}
		b.WriteString(g.Str())
		used += cw
	}
	b.WriteString(ellipsis)
	return b.String()
}

// pad right-pads s with spaces to w cells.
func pad(s string, w int) string {
	if n := w - width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// fit truncates then pads s to exactly w cells.
func fit(s string, w int, ellipsis string) string {
	return pad(truncate(s, w, ellipsis), w)
}

// columnWidths returns the display width of each column over header and
// rows, capped at maxColumnWidth.
func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], width(cell))
			}
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return widths
}

// panel is a titled column of text used by kanban and card layouts.
type panel struct {
	title string
	class string
	lines []string
}

// sideBySide lays panels out left to right, each w cells wide, and
// returns one row of segments per display line.
func sideBySide(panels []panel, w int, ellipsis string) [][]Segment {
	height := 0
	for _, p := range panels {
		height = max(height, len(p.lines)+1)
	}
	rows := make([][]Segment, height)
	for r := range rows {
		for i, p := range panels {
			if i > 0 {
				rows[r] = append(rows[r], seg("  ", ""))
			}
			switch {
			case r == 0:
				rows[r] = append(rows[r], seg(fit(p.title, w, ellipsis), p.class+"-title"))
			case r-1 < len(p.lines):
				rows[r] = append(rows[r], seg(fit(p.lines[r-1], w, ellipsis), p.class))
			default:
				rows[r] = append(rows[r], seg(strings.Repeat(" ", w), ""))
			}
		}
	}
	return rows
}
