package render

import (
	"bufio"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rivo/uniseg"
)

// Printer writes display lines with ANSI styling.
type Printer struct {
	theme *Theme
	color bool
	width int
	cache map[Style]*color.Color
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithColor forces styling on or off. By default styling follows
// color.NoColor, which is set when the output is not a terminal or
// NO_COLOR is present.
func WithColor(on bool) PrinterOption {
	return func(p *Printer) {
		p.color = on
	}
}

// WithWidth clips each line to cols terminal cells. Zero disables clipping.
func WithWidth(cols int) PrinterOption {
	return func(p *Printer) {
		p.width = max(cols, 0)
	}
}

// NewPrinter creates a printer. A nil theme uses DefaultTheme.
func NewPrinter(theme *Theme, opts ...PrinterOption) *Printer {
	if theme == nil {
		theme = DefaultTheme()
	}
	p := &Printer{theme: theme, color: !color.NoColor, cache: make(map[Style]*color.Color)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes lines to w, one per row.
func (p *Printer) Print(w io.Writer, lines []DisplayLine) error {
	bw := bufio.NewWriter(w)
	for _, dl := range lines {
		lineStyle := p.theme.Style(dl.Class)
		col := 0
		for _, s := range dl.Spans {
			text := s.Text
			if p.width > 0 {
				text = clip(text, p.width-col)
				col += uniseg.StringWidth(text)
			}
			if err := p.span(bw, text, lineStyle.Merge(p.theme.Style(s.Class))); err != nil {
				return err
			}
			if len(text) < len(s.Text) {
				break
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (p *Printer) span(w *bufio.Writer, text string, style Style) error {
	if text == "" {
		return nil
	}
	if !p.color || style.IsDefault() {
		_, err := w.WriteString(text)
		return err
	}
	_, err := w.WriteString(p.colorFor(style).Sprint(text))
	return err
}

func (p *Printer) colorFor(s Style) *color.Color {
	if c, ok := p.cache[s]; ok {
		return c
	}
	c := color.New()
	addColor(c, s.Foreground, false)
	addColor(c, s.Background, true)
	for _, a := range []struct {
		attr Attribute
		ansi color.Attribute
	}{
		{AttrBold, color.Bold},
		{AttrDim, color.Faint},
		{AttrItalic, color.Italic},
		{AttrUnderline, color.Underline},
		{AttrReverse, color.ReverseVideo},
		{AttrStrikethrough, color.CrossedOut},
	} {
		if s.Attributes.Has(a.attr) {
			c.Add(a.ansi)
		}
	}
	// The printer decides about color itself, not the package-level switch.
	c.EnableColor()
	p.cache[s] = c
	return c
}

func addColor(c *color.Color, col Color, bg bool) {
	switch {
	case col.Default:
	case col.Indexed && col.R < 8:
		base := color.FgBlack
		if bg {
			base = color.BgBlack
		}
		c.Add(base + color.Attribute(col.R))
	case col.Indexed && col.R < 16:
		base := color.FgHiBlack
		if bg {
			base = color.BgHiBlack
		}
		c.Add(base + color.Attribute(col.R-8))
	case col.Indexed:
		sel := color.Attribute(38)
		if bg {
			sel = 48
		}
		c.Add(sel, 5, color.Attribute(col.R))
	case bg:
		c.AddBgRGB(int(col.R), int(col.G), int(col.B))
	default:
		c.AddRGB(int(col.R), int(col.G), int(col.B))
	}
}

// clip returns the longest prefix of s that fits in cols cells without
// splitting a grapheme cluster.
func clip(s string, cols int) string {
	if cols <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= cols {
		return s
	}
	var b strings.Builder
	w := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if w+g.Width() > cols {
			break
		}
		w += g.Width()
		b.WriteString(g.Str())
	}
	return b.String()
}
