package widget

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/livemark/internal/decor"
)

// State is the lifecycle state of a widget instance.
type State uint8

const (
	// StateLoading shows a placeholder while data resolves.
	StateLoading State = iota

	// StateReady shows the kind-specific view.
	StateReady

	// StateError shows an inline error.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Segment is a styled run of widget text. Action names the action the
// segment triggers when activated, if any.
type Segment struct {
	Text   string
	Class  string
	Action string
}

// Line is one display line of a widget.
type Line struct {
	Segments []Segment
	Class    string
}

// Text returns the concatenated segment text.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Width returns the display width in terminal cells.
func (l Line) Width() int {
	return uniseg.StringWidth(l.Text())
}

// View is the renderer-independent output of a widget. Inline widgets
// produce a single line; block widgets may produce several.
type View struct {
	Key     string
	Kind    decor.WidgetKind
	State   State
	Block   bool
	Lines   []Line
	Actions map[string]Action

	// Err is set when State is StateError or the view shows a partial failure.
	Err error
}

// Text returns the view as plain text, one line per display line.
func (v View) Text() string {
	lines := make([]string, len(v.Lines))
	for i, l := range v.Lines {
		lines[i] = l.Text()
	}
	return strings.Join(lines, "\n")
}

// Action looks up an action offered by the view.
func (v View) Action(id string) (Action, bool) {
	a, ok := v.Actions[id]
	return a, ok
}

// Patch replaces the view of one live widget between passes.
type Patch struct {
	Key        string
	Generation string
	View       View
}

// builder accumulates the lines and actions of a view.
type builder struct {
	view View
}

func newBuilder(kind decor.WidgetKind, block bool) *builder {
	return &builder{view: View{Kind: kind, State: StateReady, Block: block}}
}

func seg(text, class string) Segment {
	return Segment{Text: text, Class: class}
}

// line appends a display line.
func (b *builder) line(class string, segs ...Segment) {
	b.view.Lines = append(b.view.Lines, Line{Class: class, Segments: segs})
}

// act registers a and returns a segment that triggers it.
func (b *builder) act(text, class string, a Action) Segment {
	if b.view.Actions == nil {
		b.view.Actions = make(map[string]Action)
	}
	id := a.id()
	a.ID = id
	b.view.Actions[id] = a
	return Segment{Text: text, Class: class, Action: id}
}

func (b *builder) build() View {
	return b.view
}

// errorView renders err as the content of a widget frame.
func errorView(kind decor.WidgetKind, block bool, glyphs Glyphs, err error) View {
	b := newBuilder(kind, block)
	b.view.State = StateError
	b.view.Err = err
	b.line("widget-error", seg(glyphs.Error+" ", "widget-error-icon"), seg(err.Error(), "widget-error-message"))
	return b.build()
}

// loadingView renders the placeholder shown while data resolves.
func loadingView(kind decor.WidgetKind, block bool, glyphs Glyphs) View {
	b := newBuilder(kind, block)
	b.view.State = StateLoading
	b.line("widget-loading", seg(glyphs.Loading+" Loading "+kind.String()+"…", "widget-loading"))
	return b.build()
}
