package widget

import "github.com/dshills/livemark/internal/decor"

type calloutWidget struct {
	static
}

func newCallout() *calloutWidget {
	return &calloutWidget{}
}

func (*calloutWidget) Kind() decor.WidgetKind { return decor.WidgetCallout }

// Render draws the callout header: fold indicator, icon and title. The
// content lines of an expanded callout stay in the document.
func (*calloutWidget) Render(rc RenderContext) View {
	spec := rc.Spec
	c, ok := spec.Block.Callout()
	if !ok {
		return errorView(decor.WidgetCallout, true, rc.Glyphs, ErrWrongKind)
	}
	family := CalloutFamily(c.Type)
	class := "callout callout-" + family

	fold := rc.Glyphs.FoldOpen
	if spec.Collapsed {
		fold = rc.Glyphs.FoldClosed
	}

	b := newBuilder(decor.WidgetCallout, spec.Collapsed || spec.Block.StartLine == spec.Block.EndLine)
	b.line(class+" callout-title",
		b.act(fold, "callout-fold", Action{Kind: ActToggleCallout}),
		seg(" "+CalloutIcon(c.Type)+" ", "callout-icon"),
		seg(c.Title, "callout-title-text"),
	)
	return b.build()
}
