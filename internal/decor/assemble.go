package decor

import (
	"strconv"

	"github.com/dshills/livemark/internal/active"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/scan"
	"github.com/dshills/livemark/internal/scan/inline"
)

// LineScanner produces inline tokens for one line. skip is the number of
// leading bytes owned by an enclosing block.
type LineScanner interface {
	Name() string
	ScanLine(line document.Line, skip int) []inline.Token
}

// CollapseState answers whether a callout is collapsed. def is the default
// from the callout marker, used when no toggle was recorded.
type CollapseState interface {
	Collapsed(key string, def bool) bool
}

// Input is everything one pass needs.
type Input struct {
	Doc      *document.Document
	Blocks   []scan.Block
	Active   active.LineSet
	Viewport Viewport
}

// Assembler converts blocks and inline tokens into decoration entries.
type Assembler struct {
	inline   LineScanner
	plugins  []LineScanner
	collapse CollapseState
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithInline replaces the built-in inline scanner.
func WithInline(s LineScanner) Option {
	return func(a *Assembler) {
		a.inline = s
	}
}

// WithPlugins adds scanners whose tokens yield to built-in tokens.
func WithPlugins(scanners ...LineScanner) Option {
	return func(a *Assembler) {
		a.plugins = append(a.plugins, scanners...)
	}
}

// WithCollapseState sets the callout collapse lookup.
func WithCollapseState(c CollapseState) Option {
	return func(a *Assembler) {
		a.collapse = c
	}
}

// NewAssembler creates an assembler with the built-in inline scanner.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		inline:   inline.NewScanner(),
		collapse: defaultCollapse{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type defaultCollapse struct{}

func (defaultCollapse) Collapsed(_ string, def bool) bool { return def }

// lineClaim records how a block owns a line.
type lineClaim struct {
	// scan allows inline scanning after skip bytes.
	scan bool
	skip int
}

// pass carries the state of one Assemble call.
type pass struct {
	a        *Assembler
	in       Input
	entries  []Entry
	claims   map[int]lineClaim
	ordinals map[string]int
}

// Assemble produces the resolved decoration sequence for one pass.
func (a *Assembler) Assemble(in Input) []Entry {
	if in.Doc == nil {
		return nil
	}
	p := &pass{
		a:        a,
		in:       in,
		claims:   make(map[int]lineClaim),
		ordinals: make(map[string]int),
	}

	// Ordinals for block widgets count over the whole document so keys do
	// not shift when the viewport moves.
	for i := range in.Blocks {
		p.block(&in.Blocks[i])
	}

	last := in.Doc.LineCount() - 1
	from, to := max(in.Viewport.FromLine, 0), min(in.Viewport.ToLine, last)
	for n := from; n <= to; n++ {
		claim, claimed := p.claims[n]
		if claimed && !claim.scan {
			continue
		}
		if !claimed && in.Active.Has(n) {
			continue
		}
		p.line(in.Doc.Line(n), claim.skip)
	}

	return Resolve(p.entries)
}

func (p *pass) key(kind WidgetKind, raw string) string {
	base := kind.String() + ":" + scan.ContentHash(raw)
	n := p.ordinals[base]
	p.ordinals[base] = n + 1
	return base + "#" + strconv.Itoa(n)
}

func (p *pass) claimAll(b *scan.Block) {
	for n := b.StartLine; n <= b.EndLine; n++ {
		p.claims[n] = lineClaim{}
	}
}

func (p *pass) add(e Entry) {
	p.entries = append(p.entries, e)
}

// block emits entries for one structural block. A block touching an active
// line, or lying wholly outside the viewport, emits nothing and its lines
// are not inline-scanned.
func (p *pass) block(b *scan.Block) {
	var kind WidgetKind
	switch b.Kind {
	case scan.KindCallout:
		kind = WidgetCallout
	case scan.KindQueryEmbed:
		kind = WidgetQuery
	case scan.KindHabitTracker:
		kind = WidgetHabit
	case scan.KindFrontmatter:
		kind = WidgetFrontmatter
	case scan.KindCodeBlock:
		p.codeBlock(b)
		return
	default:
		return
	}
	key := p.key(kind, b.Raw)

	p.claimAll(b)
	if p.in.Active.Intersects(b.StartLine, b.EndLine) {
		return
	}
	if !p.in.Viewport.Intersects(b.StartLine, b.EndLine) {
		return
	}

	spec := &WidgetSpec{Key: key, Kind: kind, Raw: b.Raw, Line: b.StartLine, Block: b}
	if kind == WidgetCallout {
		p.callout(b, spec)
		return
	}
	p.add(Entry{From: b.From, To: b.To, Kind: KindReplace, Source: b.Scanner, Widget: spec, Block: true})
}

// callout replaces the header with the callout widget. Expanded content
// lines keep their text: the quote prefix is hidden and the rest is scanned
// like any other line. Collapsed callouts replace the whole block.
func (p *pass) callout(b *scan.Block, spec *WidgetSpec) {
	c, ok := b.Callout()
	if !ok {
		return
	}
	doc := p.in.Doc
	collapsed := p.a.collapse.Collapsed(c.Key, c.DefaultCollapsed())
	spec.Collapsed = collapsed

	if collapsed || b.StartLine == b.EndLine {
		p.add(Entry{From: b.From, To: b.To, Kind: KindReplace, Source: b.Scanner, Widget: spec, Block: true})
		return
	}

	header := doc.Line(b.StartLine)
	if header.To > header.From {
		p.add(Entry{From: header.From, To: header.To, Kind: KindReplace, Source: b.Scanner, Widget: spec})
	}

	class := "callout callout-" + c.Type
	for i, n := 0, b.StartLine+1; n <= b.EndLine; i, n = i+1, n+1 {
		line := doc.Line(n)
		skip := 0
		if i < len(c.PrefixLens) {
			skip = c.PrefixLens[i]
		}
		p.add(Entry{From: line.From, To: line.From, Kind: KindLineClass, Source: b.Scanner, Class: class})
		if skip > 0 {
			p.add(Entry{From: line.From, To: line.From + skip, Kind: KindHide, Source: b.Scanner})
		}
		p.claims[n] = lineClaim{scan: true, skip: skip}
	}
}

// codeBlock styles fenced code lines and keeps their text raw.
func (p *pass) codeBlock(b *scan.Block) {
	p.claimAll(b)
	if p.in.Active.Intersects(b.StartLine, b.EndLine) || !p.in.Viewport.Intersects(b.StartLine, b.EndLine) {
		return
	}
	for n := b.StartLine; n <= b.EndLine; n++ {
		class := "codeblock"
		if n == b.StartLine || n == b.EndLine {
			class = "codeblock codeblock-fence"
		}
		from := p.in.Doc.Line(n).From
		p.add(Entry{From: from, To: from, Kind: KindLineClass, Source: b.Scanner, Class: class})
	}
}

// line runs the inline and plugin scanners over one visible line.
func (p *pass) line(line document.Line, skip int) {
	tokens := p.a.inline.ScanLine(line, skip)
	tokens = append(tokens, p.pluginTokens(line, skip, tokens)...)
	if len(tokens) == 0 {
		return
	}

	for i := range tokens {
		t := &tokens[i]
		if t.LineClass != "" {
			p.add(Entry{From: line.From, To: line.From, Kind: KindLineClass, Source: t.Source, Class: t.LineClass})
		}
		for _, h := range t.Hide {
			p.add(Entry{From: h.From, To: h.To, Kind: KindHide, Source: t.Source})
		}
		if t.Replace {
			kind := tokenWidget(t.Kind)
			p.add(Entry{
				From:   t.From,
				To:     t.To,
				Kind:   KindReplace,
				Source: t.Source,
				Widget: &WidgetSpec{
					Key:   p.key(kind, t.Raw),
					Kind:  kind,
					Raw:   t.Raw,
					Line:  line.Number,
					Token: t,
				},
			})
		}
	}

	for _, m := range inline.Marks(line, tokens) {
		p.add(Entry{From: m.From, To: m.To, Kind: KindMark, Source: "inline", Class: m.Class(), Target: m.Target})
	}
}

// pluginTokens collects plugin tokens. A plugin span that would hide bytes
// already hidden or replaced by a built-in token is dropped; styling spans
// are always kept and merged into the marks.
func (p *pass) pluginTokens(line document.Line, skip int, builtin []inline.Token) []inline.Token {
	if len(p.a.plugins) == 0 {
		return nil
	}
	var owned []document.Range
	for _, t := range builtin {
		owned = append(owned, t.Hide...)
		if t.Replace {
			owned = append(owned, document.Range{From: t.From, To: t.To})
		}
	}

	var out []inline.Token
	for _, s := range p.a.plugins {
		for _, t := range s.ScanLine(line, skip) {
			if hidesOwned(owned, t.Hide) {
				continue
			}
			owned = append(owned, t.Hide...)
			out = append(out, t)
		}
	}
	return out
}

func hidesOwned(owned, hides []document.Range) bool {
	for _, h := range hides {
		for _, o := range owned {
			if o.Overlaps(h) {
				return true
			}
		}
	}
	return false
}

func tokenWidget(k inline.Kind) WidgetKind {
	switch k {
	case inline.KindTask:
		return WidgetTask
	case inline.KindEmbed:
		return WidgetEmbed
	default:
		return WidgetBullet
	}
}
