package widget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
)

// maxChipValues caps the distinct values offered as filter chips per key.
const maxChipValues = 8

var (
	defaultTaskColumns = []string{"description", "status", "priority", "due_date"}
	defaultNoteColumns = []string{"title", "path"}
)

// queryWidget renders a query block. The active tab and the chip filters
// are view state: they survive refetches but not a change of the block.
type queryWidget struct {
	env    *Env
	body   string
	cfg    *resolve.QueryConfig
	cfgErr error

	active  int
	filters map[string]map[string]bool
}

func newQuery(spec *decor.WidgetSpec, env *Env) *queryWidget {
	w := &queryWidget{env: env, filters: make(map[string]map[string]bool)}
	f, ok := spec.Block.Fence()
	if !ok {
		w.cfgErr = &ConfigParseError{Kind: decor.WidgetQuery, Err: ErrWrongKind}
		return w
	}
	w.body = f.Body
	cfg, err := resolve.ParseQueryConfig(f.Body)
	if err != nil {
		w.cfgErr = &ConfigParseError{Kind: decor.WidgetQuery, Err: err}
		return w
	}
	w.cfg = cfg
	return w
}

func (*queryWidget) Kind() decor.WidgetKind { return decor.WidgetQuery }

func (w *queryWidget) Peek() (Result, bool) {
	if w.cfgErr != nil {
		return Result{Err: w.cfgErr}, true
	}
	if w.env.Collab.Query == nil {
		return Result{Err: &FetchError{Kind: decor.WidgetQuery, Err: fmt.Errorf("%w: query resolver", ErrNoCollaborator)}}, true
	}
	if res, ok := w.env.Caches.Query.Get(w.body); ok {
		return Result{Data: res}, true
	}
	return Result{}, false
}

func (w *queryWidget) Load(ctx context.Context) Result {
	res, err := w.env.Collab.Query.ResolveQuery(ctx, w.body)
	switch {
	case err != nil:
		return Result{Err: &FetchError{Kind: decor.WidgetQuery, Err: err}}
	case res == nil:
		return Result{Err: &FetchError{Kind: decor.WidgetQuery, Err: resolve.ErrNotFound}}
	case res.Error != "":
		return Result{Err: &FetchError{Kind: decor.WidgetQuery, Err: errors.New(res.Error)}}
	}
	w.env.Caches.Query.Set(w.body, res)
	return Result{Data: res}
}

func (*queryWidget) OnExternalEvent(ev event.Event, _ any) bool {
	return ev.Topic == event.TopicNoteSaved || ev.Topic == event.TopicPropertyChanged
}

func (w *queryWidget) selectTab(data any, index int) error {
	res := data.(*resolve.QueryResult)
	if index < 0 || index >= len(res.Tabs) {
		return fmt.Errorf("%w: tab %d", ErrUnknownAction, index)
	}
	if index != w.active {
		w.active = index
		w.clearFilters()
	}
	return nil
}

func (w *queryWidget) toggleFilter(prop, value string) {
	vals := w.filters[prop]
	if vals == nil {
		vals = make(map[string]bool)
		w.filters[prop] = vals
	}
	if vals[value] {
		delete(vals, value)
	} else {
		vals[value] = true
	}
	if len(vals) == 0 {
		delete(w.filters, prop)
	}
}

func (w *queryWidget) clearFilters() {
	clear(w.filters)
}

// visible applies the chip filters: values within a key are OR-ed, keys
// are AND-ed.
func (w *queryWidget) visible(items []resolve.Item) []resolve.Item {
	if len(w.filters) == 0 {
		return items
	}
	var out []resolve.Item
	for _, it := range items {
		ok := true
		for key, vals := range w.filters {
			hit := false
			for _, v := range cellValues(it, key) {
				if vals[v] {
					hit = true
					break
				}
			}
			if !hit {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, it)
		}
	}
	return out
}

// page is the data shown for the active tab, or the whole result when
// the query has no tabs.
type page struct {
	items []resolve.Item
	view  resolve.ViewConfig
	kind  resolve.ResultType
}

func (w *queryWidget) page(res *resolve.QueryResult) page {
	p := page{items: res.Items, view: w.cfg.View, kind: w.cfg.ResultType}
	if len(res.Tabs) == 0 {
		return p
	}
	i := min(w.active, len(res.Tabs)-1)
	p.items = res.Tabs[i].Items
	p.view = res.Tabs[i].View
	if i < len(w.cfg.Tabs) {
		if p.view.Type == "" {
			p.view = w.cfg.Tabs[i].View
		}
		p.kind = w.cfg.Tabs[i].ResultType
	}
	if p.view.Type == "" {
		p.view.Type = resolve.ViewTable
	}
	return p
}

func (w *queryWidget) Render(rc RenderContext) View {
	res := rc.Data.(*resolve.QueryResult)
	p := w.page(res)
	columns := p.view.Columns
	if len(columns) == 0 {
		columns = defaultTaskColumns
		if p.kind == resolve.ResultNotes {
			columns = defaultNoteColumns
		}
	}
	items := w.visible(p.items)

	b := newBuilder(decor.WidgetQuery, true)
	b.line("query-header", seg("Query Results ("+strconv.Itoa(len(items))+")", "query-title"))

	if len(res.Tabs) > 0 {
		var segs []Segment
		for i, tab := range res.Tabs {
			class := "query-tab"
			if i == min(w.active, len(res.Tabs)-1) {
				class += " query-tab-active"
			}
			if i > 0 {
				segs = append(segs, seg(" ", ""))
			}
			segs = append(segs, b.act(" "+tab.Name+" ", class, Action{Kind: ActSelectTab, Index: i}))
		}
		b.line("query-tabs", segs...)
	}

	w.chips(b, p.items, columns)

	if len(items) == 0 {
		b.line("query-empty", seg("No results", "query-empty"))
		return b.build()
	}

	switch p.view.Type {
	case resolve.ViewList:
		renderList(b, items, columns)
	case resolve.ViewKanban:
		renderKanban(b, items, p.view.Kanban, rc.Glyphs)
	case resolve.ViewCard:
		renderCards(b, items, p.view.Card, rc.Glyphs)
	default:
		renderTable(b, items, columns, rc.Glyphs)
	}
	return b.build()
}

// chips adds one row of filter chips per column property, built from the
// distinct values present in the unfiltered page.
func (w *queryWidget) chips(b *builder, items []resolve.Item, columns []string) {
	for _, col := range columns {
		if col == "title" || col == "description" || col == "path" {
			continue
		}
		values := distinctValues(items, col)
		if len(values) == 0 {
			continue
		}
		segs := []Segment{seg(col+":", "chip-key")}
		for _, v := range values {
			class := "chip"
			if w.filters[col][v] {
				class += " chip-active"
			}
			segs = append(segs, seg(" ", ""), b.act("["+v+"]", class, Action{Kind: ActToggleFilter, Key: col, Value: v}))
		}
		b.line("query-chips", segs...)
	}
	if len(w.filters) > 0 {
		b.line("query-chips", b.act("[clear filters]", "chip-clear", Action{Kind: ActClearFilters}))
	}
}

func distinctValues(items []resolve.Item, key string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		for _, v := range cellValues(it, key) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	if len(out) > maxChipValues {
		out = out[:maxChipValues]
	}
	return out
}

// cellValues returns the values of column key for an item. Built-in
// columns read the item fields; others read the property bag.
func cellValues(it resolve.Item, key string) []string {
	switch key {
	case "title", "description":
		return []string{it.Label()}
	case "path":
		return []string{it.Path}
	}
	return it.PropList(key)
}

func cell(it resolve.Item, key string) string {
	return strings.Join(cellValues(it, key), ", ")
}

func itemLink(it resolve.Item) Action {
	return Action{Kind: ActFollowLink, Link: resolve.Link{ID: it.ID, Path: it.Path, Title: it.Title}}
}

func renderTable(b *builder, items []resolve.Item, columns []string, g Glyphs) {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = make([]string, len(columns))
		for j, col := range columns {
			rows[i][j] = cell(it, col)
		}
	}
	widths := columnWidths(columns, rows)

	var head []Segment
	for j, col := range columns {
		if j > 0 {
			head = append(head, seg(" │ ", "query-table-rule"))
		}
		head = append(head, seg(fit(col, widths[j], g.Ellipsis), "query-table-head"))
	}
	b.line("query-table-header", head...)

	total := 0
	for _, w := range widths {
		total += w
	}
	total += 3 * (len(widths) - 1)
	b.line("query-table-rule", seg(strings.Repeat("─", total), "query-table-rule"))

	for i, it := range items {
		var segs []Segment
		for j := range columns {
			text := fit(rows[i][j], widths[j], g.Ellipsis)
			if j == 0 {
				segs = append(segs, b.act(text, "query-link", itemLink(it)))
				continue
			}
			segs = append(segs, seg(" │ ", "query-table-rule"), seg(text, "query-cell"))
		}
		b.line("query-table-row", segs...)
	}
}

func renderList(b *builder, items []resolve.Item, columns []string) {
	for _, it := range items {
		segs := []Segment{seg("• ", "query-list-bullet"), b.act(it.Label(), "query-link", itemLink(it))}
		var extra []string
		for _, col := range columns {
			if col == "title" || col == "description" {
				continue
			}
			if v := cell(it, col); v != "" {
				extra = append(extra, col+": "+v)
			}
		}
		if len(extra) > 0 {
			segs = append(segs, seg("  ("+strings.Join(extra, ", ")+")", "query-list-meta"))
		}
		b.line("query-list-item", segs...)
	}
}

func renderKanban(b *builder, items []resolve.Item, cfg *resolve.KanbanConfig, g Glyphs) {
	if cfg == nil {
		cfg = &resolve.KanbanConfig{GroupBy: "priority"}
	}
	groups := make(map[string][]resolve.Item)
	var names []string
	var uncategorized []resolve.Item
	for _, it := range items {
		v := cell(it, cfg.GroupBy)
		if v == "" {
			uncategorized = append(uncategorized, it)
			continue
		}
		if _, ok := groups[v]; !ok {
			names = append(names, v)
		}
		groups[v] = append(groups[v], it)
	}
	sort.Strings(names)

	card := func(it resolve.Item) []string {
		lines := []string{g.Bullet + " " + it.Label()}
		for _, f := range cfg.CardFields {
			if f == "description" || f == "title" {
				continue
			}
			if v := cell(it, f); v != "" {
				lines = append(lines, "  "+f+": "+v)
			}
		}
		return lines
	}

	var panels []panel
	for _, name := range names {
		p := panel{title: name + " (" + strconv.Itoa(len(groups[name])) + ")", class: "kanban-column"}
		for _, it := range groups[name] {
			p.lines = append(p.lines, card(it)...)
		}
		panels = append(panels, p)
	}
	if len(uncategorized) > 0 && cfg.Uncategorized() {
		p := panel{title: "Uncategorized (" + strconv.Itoa(len(uncategorized)) + ")", class: "kanban-column"}
		for _, it := range uncategorized {
			p.lines = append(p.lines, card(it)...)
		}
		panels = append(panels, p)
	}
	for _, row := range sideBySide(panels, kanbanWidth, g.Ellipsis) {
		b.line("query-kanban", row...)
	}
}

func renderCards(b *builder, items []resolve.Item, cfg *resolve.CardConfig, g Glyphs) {
	if cfg == nil {
		cfg = &resolve.CardConfig{DisplayFields: []string{"description"}}
	}
	perRow := cfg.Columns
	if perRow <= 0 {
		perRow = 2
	}
	for start := 0; start < len(items); start += perRow {
		var panels []panel
		for _, it := range items[start:min(start+perRow, len(items))] {
			p := panel{title: it.Label(), class: "query-card"}
			if cfg.CoverProperty != "" {
				if v := cell(it, cfg.CoverProperty); v != "" {
					p.lines = append(p.lines, "["+v+"]")
				}
			}
			for _, f := range cfg.DisplayFields {
				if f == "description" || f == "title" {
					continue
				}
				if v := cell(it, f); v != "" {
					p.lines = append(p.lines, f+": "+v)
				}
			}
			panels = append(panels, p)
		}
		if start > 0 {
			b.line("query-card-gap")
		}
		for _, row := range sideBySide(panels, cardWidth, g.Ellipsis) {
			b.line("query-cards", row...)
		}
	}
}
