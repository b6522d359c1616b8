package render

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// Painter draws display lines on a tcell screen.
type Painter struct {
	screen tcell.Screen
	theme  *Theme

	// Gutter, when positive, reserves columns for source line numbers.
	Gutter int
}

// NewPainter creates a painter. A nil theme uses DefaultTheme.
func NewPainter(screen tcell.Screen, theme *Theme) *Painter {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Painter{screen: screen, theme: theme}
}

// SetTheme replaces the theme.
func (p *Painter) SetTheme(t *Theme) {
	if t != nil {
		p.theme = t
	}
}

// Paint clears the screen and draws lines starting at display line top.
// The display line at cursor, if visible, is drawn with the cursor marker
// in the gutter. It does not call Show.
func (p *Painter) Paint(lines []DisplayLine, top, cursor int) {
	p.screen.Clear()
	width, height := p.screen.Size()
	for row := 0; row < height && top+row < len(lines); row++ {
		if top+row < 0 {
			continue
		}
		dl := lines[top+row]
		x := 0
		if p.Gutter > 0 {
			x = p.gutter(row, dl, top+row == cursor)
		}
		lineStyle := p.theme.Style(dl.Class)
		for _, s := range dl.Spans {
			style := lineStyle.Merge(p.theme.Style(s.Class))
			x = p.text(x, row, width, s.Text, convertStyle(style))
			if x >= width {
				break
			}
		}
	}
}

func (p *Painter) gutter(row int, dl DisplayLine, cursor bool) int {
	style := convertStyle(p.theme.Style("gutter").Merge(Fg(Index(8))))
	label := ""
	if dl.Part == 0 {
		label = strconv.Itoa(dl.Line + 1)
	}
	if pad := p.Gutter - 1 - len(label); pad > 0 {
		label = strings.Repeat(" ", pad) + label
	}
	x := p.text(0, row, p.Gutter, label, style)
	mark := ' '
	if cursor {
		mark = '>'
	}
	p.screen.SetContent(x, row, mark, nil, style)
	return p.Gutter
}

// text draws s at (x, y) by grapheme cluster and returns the next column.
func (p *Painter) text(x, y, limit int, s string, style tcell.Style) int {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		runes := g.Runes()
		w := g.Width()
		if w == 0 {
			continue
		}
		if x+w > limit {
			return limit
		}
		p.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += w
	}
	return x
}

// convertStyle maps a Style onto a tcell style.
func convertStyle(s Style) tcell.Style {
	style := tcell.StyleDefault
	if c, ok := tcellColor(s.Foreground); ok {
		style = style.Foreground(c)
	}
	if c, ok := tcellColor(s.Background); ok {
		style = style.Background(c)
	}
	if s.Attributes.Has(AttrBold) {
		style = style.Bold(true)
	}
	if s.Attributes.Has(AttrDim) {
		style = style.Dim(true)
	}
	if s.Attributes.Has(AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attributes.Has(AttrUnderline) {
		style = style.Underline(true)
	}
	if s.Attributes.Has(AttrReverse) {
		style = style.Reverse(true)
	}
	if s.Attributes.Has(AttrStrikethrough) {
		style = style.StrikeThrough(true)
	}
	return style
}

func tcellColor(c Color) (tcell.Color, bool) {
	switch {
	case c.Default:
		return tcell.ColorDefault, false
	case c.Indexed:
		return tcell.PaletteColor(int(c.R)), true
	default:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)), true
	}
}
