package widget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
)

const (
	minCellWidth   = 5
	habitNameWidth = 18
	textCellWidth  = 8
)

type habitWidget struct {
	env    *Env
	body   string
	cfg    *resolve.HabitConfig
	cfgErr error
}

func newHabit(spec *decor.WidgetSpec, env *Env) *habitWidget {
	w := &habitWidget{env: env}
	f, ok := spec.Block.Fence()
	if !ok {
		w.cfgErr = &ConfigParseError{Kind: decor.WidgetHabit, Err: ErrWrongKind}
		return w
	}
	w.body = f.Body
	cfg, err := resolve.ParseHabitConfig(f.Body)
	if err != nil {
		w.cfgErr = &ConfigParseError{Kind: decor.WidgetHabit, Err: err}
		return w
	}
	w.cfg = cfg
	return w
}

func (*habitWidget) Kind() decor.WidgetKind { return decor.WidgetHabit }

func (w *habitWidget) Peek() (Result, bool) {
	if w.cfgErr != nil {
		return Result{Err: w.cfgErr}, true
	}
	if w.env.Collab.Habits == nil {
		return Result{Err: &FetchError{Kind: decor.WidgetHabit, Err: fmt.Errorf("%w: habit resolver", ErrNoCollaborator)}}, true
	}
	if res, ok := w.env.Caches.Habit.Get(w.body); ok {
		return Result{Data: res}, true
	}
	return Result{}, false
}

func (w *habitWidget) Load(ctx context.Context) Result {
	res, err := w.env.Collab.Habits.ResolveHabits(ctx, w.body)
	switch {
	case err != nil:
		return Result{Err: &FetchError{Kind: decor.WidgetHabit, Err: err}}
	case res == nil:
		return Result{Err: &FetchError{Kind: decor.WidgetHabit, Err: resolve.ErrNotFound}}
	case res.Error != "":
		return Result{Err: &FetchError{Kind: decor.WidgetHabit, Err: errors.New(res.Error)}}
	}
	w.env.Caches.Habit.Set(w.body, res)
	return Result{Data: res}
}

func (*habitWidget) OnExternalEvent(ev event.Event, _ any) bool {
	return ev.Topic == event.TopicHabitLogged
}

func (w *habitWidget) Render(rc RenderContext) View {
	res := rc.Data.(*resolve.HabitResult)
	dates := res.Dates()
	if dates == nil {
		dates = resolve.Dates(w.cfg.Range(rc.Now))
	}

	b := newBuilder(decor.WidgetHabit, true)
	title := "Habits"
	if len(dates) > 0 {
		title += " " + dates[0]
		if len(dates) > 1 {
			title += " – " + dates[len(dates)-1]
		}
	}
	b.line("habit-header", seg(title, "habit-title"))

	if len(res.Habits) == 0 {
		b.line("habit-empty", seg("No habits", "habit-empty"))
		return b.build()
	}

	h := habitRenderer{b: b, cfg: w.cfg, g: rc.Glyphs, dates: dates, now: rc.Now}
	switch w.cfg.View {
	case resolve.HabitViewCalendar:
		for _, hw := range res.Habits {
			h.calendar(hw)
		}
	case resolve.HabitViewStreak:
		for _, hw := range res.Habits {
			h.streak(hw)
		}
	case resolve.HabitViewList:
		for _, hw := range res.Habits {
			h.list(hw)
		}
	default:
		if w.cfg.Vertical() {
			h.vertical(res.Habits)
		} else {
			h.horizontal(res.Habits)
		}
	}
	if w.cfg.Summary() {
		h.summary(res.Habits)
	}
	return b.build()
}

type habitRenderer struct {
	b     *builder
	cfg   *resolve.HabitConfig
	g     Glyphs
	dates []string
	now   time.Time
}

// cell renders the entry of one habit on one date. Editable boolean cells
// toggle, rating cells step to the next rating and number cells count up
// by one. Text cells are written through Runtime.EditHabit only.
func (h *habitRenderer) cell(hw resolve.HabitWithEntries, date string, w int) Segment {
	v := hw.Value(date)
	text := h.g.Empty
	class := "habit-cell"
	if hw.Done(date) {
		class += " habit-done"
	}

	var action *Action
	switch hw.Habit.Type {
	case resolve.HabitBoolean:
		if hw.Done(date) {
			text = h.g.Check
		}
		action = &Action{Kind: ActToggleHabit, HabitID: hw.Habit.ID, Date: date}
	case resolve.HabitRating:
		n, _ := strconv.Atoi(v)
		if n >= 1 && n <= 5 {
			text = strings.Repeat(h.g.Star, n)
		}
		action = &Action{Kind: ActSetHabit, HabitID: hw.Habit.ID, Date: date, Value: strconv.Itoa(n%5 + 1)}
	case resolve.HabitNumber:
		n := 0.0
		if v != "" {
			text = v
			n, _ = strconv.ParseFloat(v, 64)
		}
		action = &Action{Kind: ActSetHabit, HabitID: hw.Habit.ID, Date: date, Value: strconv.FormatFloat(n+1, 'f', -1, 64)}
	default:
		if v != "" {
			text = truncate(v, textCellWidth, h.g.Ellipsis)
		}
	}

	text = fit(text, w, h.g.Ellipsis)
	if action != nil && h.cfg.IsEditable() {
		return h.b.act(text, class, *action)
	}
	return seg(text, class)
}

func (h *habitRenderer) cellWidth(habits []resolve.HabitWithEntries) int {
	w := minCellWidth
	for _, hw := range habits {
		if hw.Habit.Type == resolve.HabitRating {
			w = max(w, 5*width(h.g.Star))
		}
		if hw.Habit.Type == resolve.HabitText {
			w = max(w, textCellWidth)
		}
	}
	return w
}

func (h *habitRenderer) name(hw resolve.HabitWithEntries) string {
	n := hw.Habit.Name
	if hw.Habit.Type == resolve.HabitNumber && hw.Habit.Unit != "" {
		n += " (" + hw.Habit.Unit + ")"
	}
	return n
}

// horizontal draws one row per habit and one column per date.
func (h *habitRenderer) horizontal(habits []resolve.HabitWithEntries) {
	cw := h.cellWidth(habits)
	nw := minCellWidth
	for _, hw := range habits {
		nw = max(nw, width(h.name(hw)))
	}
	nw = min(nw, habitNameWidth)

	head := []Segment{seg(pad("Habit", nw), "habit-table-head")}
	for _, d := range h.dates {
		head = append(head, seg(" ", ""), seg(fit(shortDate(d), cw, h.g.Ellipsis), "habit-table-head"))
	}
	h.b.line("habit-table-header", head...)

	for _, hw := range habits {
		row := []Segment{seg(fit(h.name(hw), nw, h.g.Ellipsis), "habit-name")}
		for _, d := range h.dates {
			row = append(row, seg(" ", ""), h.cell(hw, d, cw))
		}
		h.b.line("habit-table-row", row...)
	}
}

// vertical draws one row per date and one column per habit.
func (h *habitRenderer) vertical(habits []resolve.HabitWithEntries) {
	cw := h.cellWidth(habits)
	widths := make([]int, len(habits))
	head := []Segment{seg(pad("Date", minCellWidth), "habit-table-head")}
	for i, hw := range habits {
		widths[i] = min(max(cw, width(h.name(hw))), habitNameWidth)
		head = append(head, seg(" ", ""), seg(fit(h.name(hw), widths[i], h.g.Ellipsis), "habit-table-head"))
	}
	h.b.line("habit-table-header", head...)

	for _, d := range h.dates {
		row := []Segment{seg(pad(shortDate(d), minCellWidth), "habit-date")}
		for i, hw := range habits {
			row = append(row, seg(" ", ""), h.cell(hw, d, widths[i]))
		}
		h.b.line("habit-table-row", row...)
	}
}

// calendar draws a Monday-first month grid of the range for one habit.
func (h *habitRenderer) calendar(hw resolve.HabitWithEntries) {
	h.b.line("habit-calendar-title", seg(h.name(hw), "habit-name"))
	h.b.line("habit-calendar-weekdays", seg("Mo Tu We Th Fr Sa Su", "habit-table-head"))
	if len(h.dates) == 0 {
		return
	}
	first, err := time.Parse(resolve.DateLayout, h.dates[0])
	if err != nil {
		return
	}

	var row []Segment
	col := (int(first.Weekday()) + 6) % 7
	for i := 0; i < col; i++ {
		row = append(row, seg("   ", ""))
	}
	for _, d := range h.dates {
		day := d[len(d)-2:]
		class := "habit-cell"
		if hw.Done(d) {
			class += " habit-done"
		}
		if hw.Habit.Type == resolve.HabitBoolean && h.cfg.IsEditable() {
			row = append(row, h.b.act(day, class, Action{Kind: ActToggleHabit, HabitID: hw.Habit.ID, Date: d}))
		} else {
			row = append(row, seg(day, class))
		}
		row = append(row, seg(" ", ""))
		if col++; col == 7 {
			h.b.line("habit-calendar-week", row...)
			row, col = nil, 0
		}
	}
	if len(row) > 0 {
		h.b.line("habit-calendar-week", row...)
	}
}

// Streaks returns the current and longest runs of completed days. The
// current run ends at the last date, or the day before when the last date
// is not done yet.
func Streaks(hw resolve.HabitWithEntries, dates []string) (current, longest int) {
	run := 0
	for _, d := range dates {
		if hw.Done(d) {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	end := len(dates) - 1
	if end >= 0 && !hw.Done(dates[end]) {
		end--
	}
	for i := end; i >= 0 && hw.Done(dates[i]); i-- {
		current++
	}
	return current, longest
}

func (h *habitRenderer) streak(hw resolve.HabitWithEntries) {
	cur, best := Streaks(hw, h.dates)
	h.b.line("habit-streak",
		seg(fit(h.name(hw), habitNameWidth, h.g.Ellipsis), "habit-name"),
		seg("  current "+strconv.Itoa(cur), "habit-streak-current"),
		seg(" · longest "+strconv.Itoa(best), "habit-streak-longest"),
	)
}

// list draws one line per habit with the state of the last date.
func (h *habitRenderer) list(hw resolve.HabitWithEntries) {
	if len(h.dates) == 0 {
		return
	}
	last := h.dates[len(h.dates)-1]
	done := 0
	for _, d := range h.dates {
		if hw.Done(d) {
			done++
		}
	}
	box := h.g.TaskOpen
	if hw.Done(last) {
		box = h.g.TaskDone
	}
	var first Segment
	if hw.Habit.Type == resolve.HabitBoolean && h.cfg.IsEditable() {
		first = h.b.act(box, "habit-cell", Action{Kind: ActToggleHabit, HabitID: hw.Habit.ID, Date: last})
	} else {
		first = seg(box, "habit-cell")
	}
	h.b.line("habit-list-item",
		first,
		seg(" "+h.name(hw), "habit-name"),
		seg("  "+strconv.Itoa(done)+"/"+strconv.Itoa(len(h.dates)), "habit-count"),
	)
}

func (h *habitRenderer) summary(habits []resolve.HabitWithEntries) {
	done, total := 0, 0
	for _, hw := range habits {
		for _, d := range h.dates {
			total++
			if hw.Done(d) {
				done++
			}
		}
	}
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	h.b.line("habit-summary", seg(fmt.Sprintf("Completed %d of %d (%d%%)", done, total, pct), "habit-summary"))
}

// shortDate turns 2006-01-02 into 01-02.
func shortDate(d string) string {
	if len(d) == len(resolve.DateLayout) {
		return d[5:]
	}
	return d
}
