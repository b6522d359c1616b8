package widget

import (
	"context"
	"strings"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/scan"
)

type frontmatterWidget struct {
	fm *scan.Frontmatter
}

func newFrontmatter(spec *decor.WidgetSpec) *frontmatterWidget {
	w := &frontmatterWidget{}
	if spec.Block != nil {
		w.fm, _ = spec.Block.Frontmatter()
	}
	return w
}

func (*frontmatterWidget) Kind() decor.WidgetKind { return decor.WidgetFrontmatter }

func (w *frontmatterWidget) Peek() (Result, bool) {
	if w.fm == nil {
		return Result{Err: &ConfigParseError{Kind: decor.WidgetFrontmatter, Err: ErrWrongKind}}, true
	}
	if w.fm.Err != nil {
		return Result{Err: &ConfigParseError{Kind: decor.WidgetFrontmatter, Err: w.fm.Err}}, true
	}
	return Result{Data: w.fm}, true
}

func (w *frontmatterWidget) Load(context.Context) Result {
	r, _ := w.Peek()
	return r
}

func (*frontmatterWidget) OnExternalEvent(event.Event, any) bool { return false }

// Render draws the properties table: one row per key, lists joined with
// commas and tags shown without their hash.
func (*frontmatterWidget) Render(rc RenderContext) View {
	fm := rc.Data.(*scan.Frontmatter)
	b := newBuilder(decor.WidgetFrontmatter, true)
	b.line("frontmatter-header", seg("Properties", "frontmatter-title"))
	if len(fm.Properties) == 0 {
		b.line("frontmatter-empty", seg("No properties", "frontmatter-empty"))
		return b.build()
	}

	keyWidth := 0
	for _, p := range fm.Properties {
		keyWidth = max(keyWidth, width(p.Key))
	}
	keyWidth = min(keyWidth, maxColumnWidth)

	for _, p := range fm.Properties {
		value := p.Value
		key := strings.ToLower(p.Key)
		switch {
		case key == "tags" || key == "tag":
			value = strings.Join(fm.Tags, ", ")
		case key == "aliases" || key == "alias":
			value = strings.Join(fm.Aliases, ", ")
		case len(p.List) > 0:
			value = strings.Join(p.List, ", ")
		}
		b.line("frontmatter-row",
			seg(fit(p.Key, keyWidth, rc.Glyphs.Ellipsis), "frontmatter-key"),
			seg("  ", ""),
			seg(value, "frontmatter-value frontmatter-"+p.Type),
		)
	}
	return b.build()
}
