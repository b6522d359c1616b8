package render

import (
	"sort"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/widget"
)

// Span is a styled run of display text.
type Span struct {
	Text  string
	Class string

	// Widget is the key of the widget that produced the span, if any.
	Widget string

	// Action is the widget action the span triggers.
	Action string
}

// DisplayLine is one line of output.
type DisplayLine struct {
	// Line is the source line the display line stands for.
	Line int

	// Part counts the extra display lines a widget adds after the first.
	Part int

	Class string
	Spans []Span
}

// Text returns the plain text of the line.
func (l DisplayLine) Text() string {
	var b strings.Builder
	for _, s := range l.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Width returns the display width in terminal cells.
func (l DisplayLine) Width() int {
	w := 0
	for _, s := range l.Spans {
		w += uniseg.StringWidth(s.Text)
	}
	return w
}

// SpanAt returns the span covering display column col.
func (l DisplayLine) SpanAt(col int) (Span, bool) {
	x := 0
	for _, s := range l.Spans {
		w := uniseg.StringWidth(s.Text)
		if col >= x && col < x+w {
			return s, true
		}
		x += w
	}
	return Span{}, false
}

// ViewSource provides widget views by key. *widget.Runtime satisfies it.
type ViewSource interface {
	View(key string) (widget.View, bool)
}

// Compose lays out doc under entries. Entries must be resolved: sorted and
// free of overlapping ranges. A nil views renders every widget as its raw
// source text.
func Compose(doc *document.Document, entries []decor.Entry, views ViewSource) []DisplayLine {
	if doc == nil {
		return nil
	}
	lineClass := make(map[int][]string)
	var ranges []decor.Entry
	for _, e := range entries {
		if e.Kind.LineScoped() {
			n := doc.LineAt(e.From)
			lineClass[n] = append(lineClass[n], e.Class)
			continue
		}
		if e.To > e.From {
			ranges = append(ranges, e)
		}
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].From != ranges[j].From {
			return ranges[i].From < ranges[j].From
		}
		return ranges[i].To < ranges[j].To
	})

	c := composer{doc: doc, views: views}
	k := 0
	for n := 0; n < doc.LineCount(); n++ {
		line := doc.Line(n)
		for k < len(ranges) && ranges[k].To <= line.From {
			k++
		}

		if k < len(ranges) && ranges[k].Block && ranges[k].Kind == decor.KindReplace && ranges[k].From == line.From {
			e := ranges[k]
			last := doc.LineAt(e.To)
			if e.Widget != nil && e.Widget.Block != nil {
				last = e.Widget.Block.EndLine
			}
			c.block(n, last, e)
			n = last
			k++
			continue
		}

		c.line(line, strings.Join(lineClass[n], " "), ranges[k:])
	}
	return c.out
}

type composer struct {
	doc   *document.Document
	views ViewSource
	out   []DisplayLine
}

func (c *composer) view(e decor.Entry) (widget.View, bool) {
	if c.views == nil || e.Widget == nil {
		return widget.View{}, false
	}
	return c.views.View(e.Widget.Key)
}

// block emits the view of a widget that replaces lines first..last.
func (c *composer) block(first, last int, e decor.Entry) {
	v, ok := c.view(e)
	if !ok {
		for n := first; n <= last; n++ {
			text := c.doc.Line(n).Text
			c.out = append(c.out, DisplayLine{Line: n, Spans: []Span{{Text: text}}})
		}
		return
	}
	for i, l := range v.Lines {
		c.out = append(c.out, DisplayLine{Line: first, Part: i, Class: l.Class, Spans: widgetSpans(v.Key, l)})
	}
}

// line emits one source line. ranges starts at the first entry that may
// touch it.
func (c *composer) line(line document.Line, class string, ranges []decor.Entry) {
	if len(ranges) > 0 {
		e := ranges[0]
		if e.From < line.From && e.To >= line.To && e.Kind != decor.KindMark {
			// Covered by a range that started on an earlier line.
			return
		}
	}

	dl := DisplayLine{Line: line.Number, Class: class}
	var extra []widget.Line
	var extraKey string
	pos := line.From
	for _, e := range ranges {
		if e.From >= line.To && e.From != line.From {
			break
		}
		from, to := max(e.From, line.From), min(e.To, line.To)
		if from > pos {
			dl.Spans = append(dl.Spans, Span{Text: c.doc.Slice(document.Range{From: pos, To: from})})
		}
		switch e.Kind {
		case decor.KindHide:
		case decor.KindMark:
			dl.Spans = append(dl.Spans, Span{Text: c.doc.Slice(document.Range{From: from, To: to}), Class: e.Class})
		case decor.KindReplace:
			if e.From < line.From {
				break
			}
			v, ok := c.view(e)
			if !ok || len(v.Lines) == 0 {
				dl.Spans = append(dl.Spans, Span{Text: c.doc.Slice(document.Range{From: from, To: to})})
				break
			}
			dl.Spans = append(dl.Spans, widgetSpans(v.Key, v.Lines[0])...)
			if dl.Class == "" {
				dl.Class = v.Lines[0].Class
			}
			extra, extraKey = v.Lines[1:], v.Key
		}
		pos = max(pos, to)
	}
	if pos < line.To {
		dl.Spans = append(dl.Spans, Span{Text: c.doc.Slice(document.Range{From: pos, To: line.To})})
	}
	c.out = append(c.out, dl)
	for i, l := range extra {
		c.out = append(c.out, DisplayLine{Line: line.Number, Part: i + 1, Class: l.Class, Spans: widgetSpans(extraKey, l)})
	}
}

func widgetSpans(key string, l widget.Line) []Span {
	spans := make([]Span, 0, len(l.Segments))
	for _, s := range l.Segments {
		spans = append(spans, Span{Text: s.Text, Class: s.Class, Widget: key, Action: s.Action})
	}
	return spans
}
