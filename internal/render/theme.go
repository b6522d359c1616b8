package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/livemark/internal/widget"
)

// ErrUnknownTheme is returned for a theme name that is not built in.
var ErrUnknownTheme = errors.New("unknown theme")

// Theme maps style classes to styles.
//
// A class attribute may hold several space-separated classes; their styles
// are layered in order over Base. A class without an entry falls back to
// its prefix ("habit-table-head" to "habit-table" to "habit"), and
// "callout-<type>" falls back to the type's callout family.
type Theme struct {
	Name    string
	Base    Style
	Classes map[string]Style
}

// Style returns the style for a class attribute.
func (t *Theme) Style(class string) Style {
	s := t.Base
	for _, c := range strings.Fields(class) {
		if st, ok := t.lookup(c); ok {
			s = s.Merge(st)
		}
	}
	return s
}

func (t *Theme) lookup(class string) (Style, bool) {
	if st, ok := t.Classes[class]; ok {
		return st, true
	}
	if typ, ok := strings.CutPrefix(class, "callout-"); ok {
		// Unknown types report the note family; leave those to the prefix walk.
		if fam := widget.CalloutFamily(typ); fam != "note" || typ == "note" {
			if st, ok := t.Classes["callout-"+fam]; ok {
				return st, true
			}
		}
	}
	for {
		i := strings.LastIndexByte(class, '-')
		if i <= 0 {
			return Style{}, false
		}
		class = class[:i]
		if st, ok := t.Classes[class]; ok {
			return st, true
		}
	}
}

// Themes lists the built-in theme names.
func Themes() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeByName returns a built-in theme.
func ThemeByName(name string) (*Theme, error) {
	if name == "" {
		name = "default"
	}
	mk, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	return mk(), nil
}

var builtin = map[string]func() *Theme{
	"default":   DefaultTheme,
	"mono":      MonoTheme,
	"solarized": SolarizedTheme,
}

// DefaultTheme uses the 16-color palette so it works on any color terminal.
func DefaultTheme() *Theme {
	def := DefaultStyle()
	return &Theme{
		Name: "default",
		Base: def,
		Classes: map[string]Style{
			"heading-1":     Fg(Index(13)).With(AttrBold | AttrUnderline),
			"heading":       Fg(Index(13)).With(AttrBold),
			"bold":          def.With(AttrBold),
			"italic":        def.With(AttrItalic),
			"strikethrough": def.With(AttrStrikethrough),
			"highlight":     Fg(Index(0)).On(Index(11)),
			"code":          Fg(Index(3)),
			"codeblock":     Fg(Index(7)),
			"link":          Fg(Index(4)).With(AttrUnderline),
			"wikilink":      Fg(Index(6)).With(AttrUnderline),
			"url":           Fg(Index(4)).With(AttrUnderline),
			"tag":           Fg(Index(5)),
			"blockquote":    Fg(Index(8)).With(AttrItalic),

			"callout":          Fg(Index(4)),
			"callout-title":    def.With(AttrBold),
			"callout-fold":     Fg(Index(8)),
			"callout-icon":     def,
			"callout-note":     Fg(Index(4)),
			"callout-info":     Fg(Index(6)),
			"callout-tip":      Fg(Index(14)),
			"callout-warning":  Fg(Index(3)),
			"callout-danger":   Fg(Index(1)),
			"callout-bug":      Fg(Index(1)),
			"callout-failure":  Fg(Index(1)),
			"callout-example":  Fg(Index(5)),
			"callout-quote":    Fg(Index(8)),
			"callout-success":  Fg(Index(2)),
			"callout-question": Fg(Index(11)),
			"callout-abstract": Fg(Index(6)),
			"callout-todo":     Fg(Index(4)),

			"task":           def,
			"task-checkbox":  Fg(Index(4)),
			"task-done":      Fg(Index(8)).With(AttrStrikethrough),
			"task-context":   Fg(Index(6)),
			"task-priority":  Fg(Index(3)),
			"task-due":       Fg(Index(5)),
			"task-overdue":   Fg(Index(1)).With(AttrBold),
			"bullet":         Fg(Index(4)),
			"widget-loading": Fg(Index(8)).With(AttrItalic),
			"widget-error":   Fg(Index(1)),

			"query":               def,
			"query-header":        def.With(AttrBold),
			"query-table-head":    def.With(AttrBold | AttrUnderline),
			"query-table-header":  def.With(AttrBold),
			"query-table-rule":    Fg(Index(8)),
			"query-tab":           Fg(Index(8)),
			"query-tab-active":    def.With(AttrReverse),
			"query-link":          Fg(Index(6)),
			"query-empty":         Fg(Index(8)).With(AttrItalic),
			"chip":                Fg(Index(8)),
			"chip-active":         Fg(Index(2)).With(AttrBold),
			"chip-key":            Fg(Index(8)),
			"kanban-column":       def,
			"kanban-column-title": def.With(AttrBold),

			"habit":        def,
			"habit-header": def.With(AttrBold),
			"habit-name":   Fg(Index(6)),
			"habit-cell":   Fg(Index(8)),
			"habit-done":   Fg(Index(2)).With(AttrBold),
			"habit-streak": Fg(Index(3)),
			"habit-empty":  Fg(Index(8)).With(AttrItalic),

			"embed":        def,
			"embed-gutter": Fg(Index(8)),
			"embed-title":  Fg(Index(6)).With(AttrBold),
			"embed-media":  Fg(Index(5)),

			"frontmatter":     Fg(Index(8)),
			"frontmatter-key": Fg(Index(6)),
		},
	}
}

// MonoTheme uses attributes only.
func MonoTheme() *Theme {
	def := DefaultStyle()
	return &Theme{
		Name: "mono",
		Base: def,
		Classes: map[string]Style{
			"heading":             def.With(AttrBold),
			"heading-1":           def.With(AttrBold | AttrUnderline),
			"bold":                def.With(AttrBold),
			"italic":              def.With(AttrItalic),
			"strikethrough":       def.With(AttrStrikethrough),
			"highlight":           def.With(AttrReverse),
			"link":                def.With(AttrUnderline),
			"wikilink":            def.With(AttrUnderline),
			"url":                 def.With(AttrUnderline),
			"blockquote":          def.With(AttrDim),
			"callout-title":       def.With(AttrBold),
			"task-done":           def.With(AttrDim | AttrStrikethrough),
			"task-overdue":        def.With(AttrBold),
			"widget-loading":      def.With(AttrDim),
			"widget-error":        def.With(AttrBold),
			"query-table-head":    def.With(AttrBold | AttrUnderline),
			"query-header":        def.With(AttrBold),
			"query-tab-active":    def.With(AttrReverse),
			"chip-active":         def.With(AttrReverse),
			"habit-done":          def.With(AttrBold),
			"habit-header":        def.With(AttrBold),
			"embed-title":         def.With(AttrBold),
			"embed-gutter":        def.With(AttrDim),
			"frontmatter":         def.With(AttrDim),
			"kanban-column-title": def.With(AttrBold),
		},
	}
}

// SolarizedTheme uses the Solarized dark palette in true color.
func SolarizedTheme() *Theme {
	var (
		base01  = mustHex("#586e75")
		base1   = mustHex("#93a1a1")
		yellow  = mustHex("#b58900")
		orange  = mustHex("#cb4b16")
		red     = mustHex("#dc322f")
		magenta = mustHex("#d33682")
		violet  = mustHex("#6c71c4")
		blue    = mustHex("#268bd2")
		cyan    = mustHex("#2aa198")
		green   = mustHex("#859900")
	)
	def := DefaultStyle()
	return &Theme{
		Name: "solarized",
		Base: Fg(base1),
		Classes: map[string]Style{
			"heading":       Fg(orange).With(AttrBold),
			"heading-1":     Fg(orange).With(AttrBold | AttrUnderline),
			"bold":          def.With(AttrBold),
			"italic":        def.With(AttrItalic),
			"strikethrough": Fg(base01).With(AttrStrikethrough),
			"highlight":     Fg(mustHex("#002b36")).On(yellow),
			"code":          Fg(yellow),
			"codeblock":     Fg(base01),
			"link":          Fg(blue).With(AttrUnderline),
			"wikilink":      Fg(violet).With(AttrUnderline),
			"url":           Fg(blue).With(AttrUnderline),
			"tag":           Fg(magenta),
			"blockquote":    Fg(base01).With(AttrItalic),

			"callout":          Fg(blue),
			"callout-title":    def.With(AttrBold),
			"callout-fold":     Fg(base01),
			"callout-info":     Fg(cyan),
			"callout-tip":      Fg(cyan),
			"callout-warning":  Fg(yellow),
			"callout-danger":   Fg(red),
			"callout-bug":      Fg(red),
			"callout-failure":  Fg(red),
			"callout-example":  Fg(violet),
			"callout-quote":    Fg(base01),
			"callout-success":  Fg(green),
			"callout-question": Fg(orange),

			"task-checkbox":  Fg(blue),
			"task-done":      Fg(base01).With(AttrStrikethrough),
			"task-context":   Fg(cyan),
			"task-priority":  Fg(orange),
			"task-due":       Fg(magenta),
			"task-overdue":   Fg(red).With(AttrBold),
			"bullet":         Fg(blue),
			"widget-loading": Fg(base01).With(AttrItalic),
			"widget-error":   Fg(red),

			"query-header":        def.With(AttrBold),
			"query-table-head":    Fg(base1).With(AttrBold | AttrUnderline),
			"query-table-rule":    Fg(base01),
			"query-tab":           Fg(base01),
			"query-tab-active":    Fg(blue).With(AttrBold),
			"query-link":          Fg(cyan),
			"query-empty":         Fg(base01).With(AttrItalic),
			"chip":                Fg(base01),
			"chip-active":         Fg(green).With(AttrBold),
			"kanban-column-title": def.With(AttrBold),

			"habit-header": def.With(AttrBold),
			"habit-name":   Fg(cyan),
			"habit-cell":   Fg(base01),
			"habit-done":   Fg(green).With(AttrBold),
			"habit-streak": Fg(yellow),

			"embed-gutter": Fg(base01),
			"embed-title":  Fg(cyan).With(AttrBold),
			"embed-media":  Fg(magenta),

			"frontmatter":     Fg(base01),
			"frontmatter-key": Fg(cyan),
		},
	}
}

// Glyphs returns the widget glyph set for a render.glyphs setting.
func Glyphs(name string) (widget.Glyphs, error) {
	switch name {
	case "", "unicode":
		return widget.DefaultGlyphs(), nil
	case "ascii":
		return widget.ASCIIGlyphs(), nil
	default:
		return widget.Glyphs{}, fmt.Errorf("unknown glyph set %q", name)
	}
}
