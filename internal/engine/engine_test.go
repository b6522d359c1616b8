package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/livemark/internal/config"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/schedule"
	"github.com/dshills/livemark/internal/widget"
)

const queryDoc = "intro\n```query\nfilters:\n  - key: status\n    operator: equals\n    value: open\n```\n"

const calloutDoc = "> [!warning] Careful\n> first\n> second\n\nafter\n"

var testToday = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newMemory() *resolve.Memory {
	mem := resolve.NewMemory()
	mem.Today = func() time.Time { return testToday }
	mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 1, Path: "a.md", Props: `{"description":"Write report","status":"open"}`})
	mem.AddNote(resolve.Note{ID: 7, Path: "alpha.md", Title: "Alpha", Content: "Alpha body\n"})
	mem.AddHabit(resolve.Habit{ID: 1, Name: "Read", Type: resolve.HabitBoolean}, map[string]string{"2024-03-05": "true"})
	return mem
}

// newEngine creates an engine that fetches inline and refreshes without
// debouncing, so Settle leaves it idle.
func newEngine(t *testing.T, mem *resolve.Memory, opts ...Option) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Widgets.RefreshDebounce = 0
	opts = append([]Option{
		WithExecutor(schedule.Inline{}),
		WithClock(func() time.Time { return testToday }),
	}, opts...)
	e, err := New(cfg, resolve.Full(mem), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func settle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Settle(ctx); err != nil {
		t.Fatalf("Settle() = %v", err)
	}
}

func widgetKey(t *testing.T, e *Engine, kind decor.WidgetKind) string {
	t.Helper()
	for _, d := range e.Decorations() {
		if d.Widget != nil && d.Widget.Kind == kind {
			return d.Widget.Key
		}
	}
	t.Fatalf("no %s widget in %v", kind, e.Decorations())
	return ""
}

func TestEngineResolvesOnPool(t *testing.T) {
	mem := newMemory()
	e, err := New(nil, resolve.Full(mem))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	var patches []widget.Patch
	e.OnPatch(func(p widget.Patch) { patches = append(patches, p) })

	res := e.SetDocument(document.New(queryDoc, 1))
	if res.Sync.Loading != 1 {
		t.Fatalf("Sync = %+v, want one loading widget", res.Sync)
	}
	settle(t, e)

	key := widgetKey(t, e, decor.WidgetQuery)
	v, ok := e.View(key)
	if !ok || v.State != widget.StateReady || !strings.Contains(v.Text(), "Write report") {
		t.Fatalf("view = %v %q", v.State, v.Text())
	}
	if len(patches) != 1 || patches[0].Key != key {
		t.Errorf("patches = %+v", patches)
	}
	if err := decor.Validate(e.Decorations()); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	var text []string
	for _, dl := range e.Display() {
		text = append(text, dl.Text())
	}
	if out := strings.Join(text, "\n"); !strings.HasPrefix(out, "intro\n") || !strings.Contains(out, "Write report") {
		t.Errorf("display = %q", out)
	}
}

func TestEngineTriggers(t *testing.T) {
	e := newEngine(t, newMemory())
	var passes int
	e.OnPass(func(schedule.Result) { passes++ })

	doc := document.New("**one**\nplain\n**three**\n", 1)
	e.SetDocument(doc)
	if e.Document() != doc {
		t.Error("Document() is not the document set")
	}
	if res := e.SetSelection(document.Cursor(doc.Line(1).From)); res.Skipped {
		t.Error("moving to another line skipped the pass")
	}
	if sel := e.Selection(); len(sel.Ranges) != 1 || sel.Ranges[0].From != doc.Line(1).From {
		t.Errorf("Selection() = %+v", sel)
	}
	if res := e.SetViewport(2, 2); res.Viewport != (decor.Viewport{FromLine: 2, ToLine: 2}) {
		t.Errorf("Viewport = %+v", res.Viewport)
	}
	if res := e.ShowAll(); res.Viewport != decor.All() {
		t.Errorf("ShowAll viewport = %+v", res.Viewport)
	}
	if res := e.Refresh(); res.Trigger != schedule.TriggerRefresh || e.Last().Seq != res.Seq {
		t.Errorf("Refresh = %+v", res)
	}
	if passes != 5 {
		t.Errorf("passes = %d, want 5", passes)
	}
}

func TestEngineNoteSavedRefetchesEmbed(t *testing.T) {
	mem := newMemory()
	e := newEngine(t, mem)
	e.SetDocument(document.New("top\n![[alpha]]\n", 1))
	settle(t, e)

	key := widgetKey(t, e, decor.WidgetEmbed)
	if v, _ := e.View(key); !strings.Contains(v.Text(), "Alpha body") {
		t.Fatalf("embed view = %q", v.Text())
	}
	_, _, before := mem.Calls()

	if err := e.Publish(event.NoteSavedEvent("alpha.md")); err != nil {
		t.Fatal(err)
	}
	settle(t, e)
	if _, _, after := mem.Calls(); after != before+1 {
		t.Errorf("embed fetches = %d, want %d", after, before+1)
	}

	// A note nothing embeds leaves the widget alone.
	if err := e.Publish(event.NoteSavedEvent("other/beta.md")); err != nil {
		t.Fatal(err)
	}
	settle(t, e)
	if _, _, after := mem.Calls(); after != before+1 {
		t.Errorf("unrelated save refetched: %d fetches", after)
	}
}

func TestEngineNoteSavedMatchesTargetSpellings(t *testing.T) {
	for _, target := range []string{"alpha", "alpha.md", "Alpha", "ALPHA.MD"} {
		t.Run(target, func(t *testing.T) {
			mem := newMemory()
			e := newEngine(t, mem)
			e.SetDocument(document.New("top\n![["+target+"]]\n", 1))
			settle(t, e)
			_, _, before := mem.Calls()

			if err := e.Publish(event.NoteSavedEvent("alpha.md")); err != nil {
				t.Fatal(err)
			}
			settle(t, e)
			if _, _, after := mem.Calls(); after != before+1 {
				t.Errorf("embed fetches after save = %d, want %d", after, before+1)
			}
		})
	}
}

func TestEngineEventsInvalidateByTopic(t *testing.T) {
	mem := newMemory()
	bus := event.NewBus()
	e := newEngine(t, mem, WithBus(bus))
	e.SetDocument(document.New(queryDoc+"\n```habit\nhabits: [Read]\ndate_range: last_7_days\n```\n", 1))
	settle(t, e)
	widgetKey(t, e, decor.WidgetHabit)

	tests := []struct {
		name          string
		ev            event.Event
		query, habits int64
	}{
		{"habit logged", event.HabitLoggedEvent("1", "2024-03-06"), 1, 2},
		{"property changed", event.PropertyChangedEvent("7", "status"), 2, 2},
		{"note saved", event.NoteSavedEvent("a.md"), 3, 2},
		{"config reloaded without config", event.New(event.TopicConfigReloaded, event.ConfigReloaded{}, "config"), 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The shared bus reaches the engine like its own Publish.
			if err := bus.Publish(tt.ev); err != nil {
				t.Fatal(err)
			}
			settle(t, e)
			query, habits, _ := mem.Calls()
			if query != tt.query || habits != tt.habits {
				t.Errorf("fetches = %d query, %d habit; want %d, %d", query, habits, tt.query, tt.habits)
			}
		})
	}
}

func TestEngineDebouncesRefresh(t *testing.T) {
	mem := newMemory()
	cfg := config.Default()
	cfg.Widgets.RefreshDebounce = config.Duration(20 * time.Millisecond)
	e, err := New(cfg, resolve.Full(mem), WithExecutor(schedule.Inline{}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	e.SetDocument(document.New(queryDoc, 1))
	settle(t, e)

	for i := 0; i < 5; i++ {
		if err := e.Publish(event.PropertyChangedEvent("1", "status")); err != nil {
			t.Fatal(err)
		}
	}
	settle(t, e)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		settle(t, e)
		if q, _, _ := mem.Calls(); q == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	settle(t, e)
	if q, _, _ := mem.Calls(); q != 2 {
		t.Errorf("query fetches = %d, want 2 after one debounced refresh", q)
	}
}

func TestEngineToggleCallout(t *testing.T) {
	e := newEngine(t, newMemory())
	e.SetDocument(document.New(calloutDoc, 1))
	e.SetSelection(document.Cursor(len(calloutDoc) - 1))
	key := widgetKey(t, e, decor.WidgetCallout)

	collapsed, err := e.ToggleCallout(key)
	if err != nil || !collapsed {
		t.Fatalf("ToggleCallout = %v, %v", collapsed, err)
	}
	v, _ := e.View(key)
	if !strings.HasPrefix(v.Text(), "▸") {
		t.Errorf("collapsed view = %q", v.Text())
	}

	if err := e.Activate(key, "fold"); err != nil {
		t.Fatal(err)
	}
	v, _ = e.View(key)
	if !strings.HasPrefix(v.Text(), "▾") {
		t.Errorf("expanded view = %q", v.Text())
	}

	if _, err := e.ToggleCallout("missing"); !errors.Is(err, widget.ErrUnknownWidget) {
		t.Errorf("ToggleCallout(missing) = %v", err)
	}
	if err := e.Activate(key, "nope"); !errors.Is(err, widget.ErrUnknownAction) {
		t.Errorf("Activate(nope) = %v", err)
	}
}

func TestEngineHabitEdit(t *testing.T) {
	mem := newMemory()
	e := newEngine(t, mem)
	e.SetDocument(document.New("top\n```habit\nhabits: [Read]\ndate_range: single_day\ndate: 2024-03-06\n```\n", 1))
	settle(t, e)
	key := widgetKey(t, e, decor.WidgetHabit)

	if err := e.EditHabit(key, 1, "2024-03-06", ""); err != nil {
		t.Fatal(err)
	}
	settle(t, e)
	if err := e.EditHabit(key, 42, "2024-03-06", ""); err == nil {
		t.Error("EditHabit on an unknown habit succeeded")
	}
	if err := e.SelectTab(key, 0); !errors.Is(err, widget.ErrWrongKind) {
		t.Errorf("SelectTab on a habit widget = %v", err)
	}
}

func TestEngineConfigReloaded(t *testing.T) {
	e := newEngine(t, newMemory())
	next := config.Default()
	next.Path = "livemark.toml"
	next.Cache.QueryTTL = config.Duration(time.Minute)
	next.Log.Level = "debug"

	ev := event.New(event.TopicConfigReloaded, event.ConfigReloaded{Path: next.Path, Config: next}, "config")
	if err := e.Publish(ev); err != nil {
		t.Fatal(err)
	}
	settle(t, e)
	if got := e.Caches().Query.TTL(); got != time.Minute {
		t.Errorf("query TTL = %s, want 1m", got)
	}
	if e.Config() != next {
		t.Error("Config() is not the reloaded configuration")
	}
}

func TestEnginePlugins(t *testing.T) {
	script := filepath.Join(t.TempDir(), "todo.lua")
	src := `
function scan_line(text)
    local out = {}
    for s, e in text:gmatch("()TODO()") do
        table.insert(out, livemark.token{from = s, to = e - 1, class = "todo"})
    end
    return out
end
`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Plugins.Paths = []string{script, filepath.Join(t.TempDir(), "missing.lua")}

	e, err := New(cfg, resolve.Full(newMemory()), WithExecutor(schedule.Inline{}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.SetDocument(document.New("first\nfix TODO now\n", 1))
	found := false
	for _, d := range e.Decorations() {
		if d.Kind == decor.KindMark && d.Class == "todo" {
			found = d.From == 10 && d.To == 14
		}
	}
	if !found {
		t.Errorf("no todo mark at 10..14 in %v", e.Decorations())
	}
}

func TestEngineInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Glyphs = "emoji"
	if _, err := New(cfg, resolve.Collaborators{}); err == nil {
		t.Error("New accepted an unknown glyph set")
	}
}

func TestEngineClose(t *testing.T) {
	e := newEngine(t, newMemory())
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := e.Publish(event.NoteSavedEvent("a.md")); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close = %v", err)
	}
	if err := e.Settle(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Settle after Close = %v", err)
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Run after Close = %v", err)
	}
}

func TestEngineRun(t *testing.T) {
	e := newEngine(t, newMemory())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	done := make(chan schedule.Result, 1)
	e.Post(func() {
		done <- e.SetDocument(document.New(queryDoc, 1))
	})
	select {
	case res := <-done:
		if res.Version != 1 {
			t.Errorf("Version = %d", res.Version)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("posted work did not run")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v", err)
	}
}
