package widget

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/livemark/internal/active"
	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/scan"
)

// queue collects submitted work until the test runs it.
type queue struct {
	fns []func(context.Context)
}

func (q *queue) Submit(fn func(context.Context)) { q.fns = append(q.fns, fn) }

func (q *queue) run() {
	fns := q.fns
	q.fns = nil
	for _, fn := range fns {
		fn(context.Background())
	}
}

// mailbox collects posted callbacks until the test flushes it.
type mailbox struct {
	fns []func()
}

func (m *mailbox) Post(fn func()) { m.fns = append(m.fns, fn) }

func (m *mailbox) flush() {
	fns := m.fns
	m.fns = nil
	for _, fn := range fns {
		fn()
	}
}

type harness struct {
	t       *testing.T
	mem     *resolve.Memory
	caches  *cache.Set
	exec    *queue
	post    *mailbox
	rt      *Runtime
	asm     *decor.Assembler
	patches []Patch
	version uint64
}

var testToday = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		mem:    resolve.NewMemory(),
		caches: cache.NewSet(cache.DefaultTTLs()),
		exec:   &queue{},
		post:   &mailbox{},
	}
	h.mem.Today = func() time.Time { return testToday }
	h.rt = NewRuntime(Env{
		Caches: h.caches,
		Collab: resolve.Full(h.mem),
		Now:    func() time.Time { return testToday },
	}, h.exec, h.post)
	h.rt.OnPatch(func(p Patch) { h.patches = append(h.patches, p) })
	h.asm = decor.NewAssembler(decor.WithCollapseState(h.rt.Collapse()))
	return h
}

// pass assembles text with no active lines and syncs the runtime.
func (h *harness) pass(text string) []decor.Entry {
	h.t.Helper()
	h.version++
	doc := document.New(text, h.version)
	entries := h.asm.Assemble(decor.Input{
		Doc:      doc,
		Blocks:   scan.DefaultRegistry().Scan(doc),
		Active:   active.Of(),
		Viewport: decor.All(),
	})
	h.rt.Sync(entries, h.version)
	return entries
}

// settle runs queued work and delivers results, repeating until idle.
func (h *harness) settle() {
	for len(h.exec.fns) > 0 || len(h.post.fns) > 0 {
		h.exec.run()
		h.post.flush()
	}
}

func widgetKey(t *testing.T, entries []decor.Entry, kind decor.WidgetKind) string {
	t.Helper()
	for _, e := range entries {
		if e.Widget != nil && e.Widget.Kind == kind {
			return e.Widget.Key
		}
	}
	t.Fatalf("no %s widget in %v", kind, entries)
	return ""
}

const queryDoc = "intro\n```query\nfilters:\n  - key: status\n    operator: equals\n    value: open\nview:\n  view_type: table\n  columns: [description, status]\n```\n"

func addTasks(m *resolve.Memory) {
	m.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 1, Path: "a.md", Props: `{"description":"Write report","status":"open"}`})
	m.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 2, Path: "b.md", Props: `{"description":"Call Bob","status":"open"}`})
	m.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 3, Path: "c.md", Props: `{"description":"Old","status":"done"}`})
}

func TestRuntime_QueryLifecycle(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)

	entries := h.pass(queryDoc)
	key := widgetKey(t, entries, decor.WidgetQuery)

	inst, ok := h.rt.Instance(key)
	if !ok {
		t.Fatal("instance not created")
	}
	if inst.State() != StateLoading {
		t.Fatalf("State = %v, want loading", inst.State())
	}
	v, _ := h.rt.View(key)
	if !strings.Contains(v.Text(), "Loading") {
		t.Errorf("placeholder = %q", v.Text())
	}

	h.settle()
	if inst.State() != StateReady {
		t.Fatalf("State = %v, want ready", inst.State())
	}
	if len(h.patches) != 1 || h.patches[0].Key != key || h.patches[0].Generation != inst.Generation() {
		t.Fatalf("patches = %+v", h.patches)
	}
	v, _ = h.rt.View(key)
	text := v.Text()
	for _, want := range []string{"Query Results (2)", "Write report", "Call Bob"} {
		if !strings.Contains(text, want) {
			t.Errorf("view missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Old") {
		t.Errorf("filtered item rendered:\n%s", text)
	}

	// Same block text: the instance and its data are reused.
	h.pass("changed intro\n" + queryDoc[len("intro\n"):])
	if again, _ := h.rt.Instance(key); again != inst {
		t.Error("instance replaced for unchanged block")
	}
	if q, _, _ := h.mem.Calls(); q != 1 {
		t.Errorf("query calls = %d, want 1", q)
	}
}

func TestRuntime_CacheHitRendersReady(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	h.pass(queryDoc)
	h.settle()

	// A second runtime sharing the caches resolves in the pass.
	rt := NewRuntime(Env{Caches: h.caches, Collab: resolve.Full(h.mem)}, h.exec, h.post)
	doc := document.New(queryDoc, 1)
	entries := h.asm.Assemble(decor.Input{Doc: doc, Blocks: scan.DefaultRegistry().Scan(doc), Active: active.Of(), Viewport: decor.All()})
	st := rt.Sync(entries, 1)
	if st.Created != 1 || st.Loading != 0 {
		t.Errorf("SyncStats = %+v", st)
	}
	if len(h.exec.fns) != 0 {
		t.Error("fetch submitted on cache hit")
	}
}

func TestRuntime_LateResultDiscarded(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	h.pass(queryDoc)

	// The block is edited before the fetch resolves.
	edited := strings.Replace(queryDoc, "value: open", "value: done", 1)
	st := h.rt.Sync(nil, 2)
	if st.Destroyed != 1 {
		t.Fatalf("Destroyed = %d", st.Destroyed)
	}
	entries := h.pass(edited)
	newKey := widgetKey(t, entries, decor.WidgetQuery)

	h.settle()
	if h.rt.Discarded() != 1 {
		t.Errorf("Discarded = %d, want 1", h.rt.Discarded())
	}
	for _, p := range h.patches {
		if p.Key != newKey {
			t.Errorf("patch for dead widget %s", p.Key)
		}
	}
	v, _ := h.rt.View(newKey)
	if !strings.Contains(v.Text(), "Query Results (1)") {
		t.Errorf("view = %q", v.Text())
	}
}

func TestRuntime_ConfigErrorSkipsFetch(t *testing.T) {
	h := newHarness(t)
	doc := "```query\nfilters:\n  - key: status\n    operator: resembles\n```\n"
	entries := h.pass(doc)
	key := widgetKey(t, entries, decor.WidgetQuery)

	inst, _ := h.rt.Instance(key)
	if inst.State() != StateError {
		t.Fatalf("State = %v, want error", inst.State())
	}
	var cpe *ConfigParseError
	if !errors.As(inst.View().Err, &cpe) {
		t.Errorf("Err = %v, want ConfigParseError", inst.View().Err)
	}
	if !errors.Is(inst.View().Err, resolve.ErrUnknownOperator) {
		t.Errorf("Err = %v, want ErrUnknownOperator", inst.View().Err)
	}
	if len(h.exec.fns) != 0 {
		t.Error("fetch submitted for invalid configuration")
	}
}

func TestRuntime_FetchError(t *testing.T) {
	h := newHarness(t)
	h.mem.SetFail(errors.New("host unreachable"))
	entries := h.pass(queryDoc)
	key := widgetKey(t, entries, decor.WidgetQuery)
	h.settle()

	v, _ := h.rt.View(key)
	if v.State != StateError {
		t.Fatalf("State = %v", v.State)
	}
	var fe *FetchError
	if !errors.As(v.Err, &fe) {
		t.Fatalf("Err = %v, want FetchError", v.Err)
	}
	if !strings.Contains(v.Text(), "host unreachable") {
		t.Errorf("view = %q", v.Text())
	}
}

func TestRuntime_StaleRefetchKeepsReady(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	entries := h.pass(queryDoc)
	key := widgetKey(t, entries, decor.WidgetQuery)
	h.settle()

	if n := h.rt.Notify(event.PropertyChangedEvent("1", "status")); n != 1 {
		t.Fatalf("Notify = %d, want 1", n)
	}
	h.caches.Query.Clear()
	h.mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 4, Path: "d.md", Props: `{"description":"New","status":"open"}`})

	h.pass(queryDoc)
	inst, _ := h.rt.Instance(key)
	if inst.State() != StateReady {
		t.Fatalf("State during refetch = %v, want ready", inst.State())
	}
	if len(h.exec.fns) != 1 {
		t.Fatalf("queued fetches = %d, want 1", len(h.exec.fns))
	}
	h.settle()
	if !strings.Contains(inst.View().Text(), "Query Results (3)") {
		t.Errorf("view = %q", inst.View().Text())
	}
}

func TestRuntime_NotifyIgnoresUnrelated(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	h.pass(queryDoc)
	h.settle()
	if n := h.rt.Notify(event.HabitLoggedEvent("1", "2024-03-06")); n != 0 {
		t.Errorf("Notify = %d, want 0", n)
	}
}

type panicky struct{ static }

func (panicky) Kind() decor.WidgetKind { return decor.WidgetBullet }
func (panicky) Render(RenderContext) View {
	panic("renderer bug")
}

func TestRuntime_RenderPanicRecovered(t *testing.T) {
	h := newHarness(t)
	inst := &Instance{key: "bullet:x#0", spec: &decor.WidgetSpec{Key: "bullet:x#0", Kind: decor.WidgetBullet}, r: panicky{}, state: StateReady}
	v := h.rt.renderView(inst)
	if v.State != StateError || v.Key != "bullet:x#0" {
		t.Fatalf("view = %+v", v)
	}
	var pe *PanicError
	if !errors.As(v.Err, &pe) || pe.Value != "renderer bug" {
		t.Errorf("Err = %v", v.Err)
	}
}

func TestRuntime_TabsAndFilters(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	h.mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 5, Path: "e.md", Props: `{"description":"Ship","status":"open","priority":"high"}`})
	doc := "```query\ntabs:\n  - name: Open\n    filters:\n      - key: status\n        operator: equals\n        value: open\n    view:\n      columns: [description, status, priority]\n  - name: Done\n    include_completed: true\n    filters:\n      - key: status\n        operator: equals\n        value: done\n```\n"
	entries := h.pass(doc)
	key := widgetKey(t, entries, decor.WidgetQuery)
	h.settle()

	v, _ := h.rt.View(key)
	if !strings.Contains(v.Text(), "Query Results (3)") {
		t.Fatalf("view = %q", v.Text())
	}
	if _, ok := v.Action("tab:1"); !ok {
		t.Fatalf("actions = %v", v.Actions)
	}

	if _, err := h.rt.Activate(key, "filter:priority=high"); err != nil {
		t.Fatal(err)
	}
	v, _ = h.rt.View(key)
	if !strings.Contains(v.Text(), "Query Results (1)") || !strings.Contains(v.Text(), "Ship") {
		t.Errorf("filtered view = %q", v.Text())
	}
	if _, ok := v.Action("filters:clear"); !ok {
		t.Error("clear action missing with active filter")
	}

	if _, err := h.rt.Activate(key, "tab:1"); err != nil {
		t.Fatal(err)
	}
	v, _ = h.rt.View(key)
	if !strings.Contains(v.Text(), "Query Results (1)") || !strings.Contains(v.Text(), "Old") {
		t.Errorf("tab view = %q", v.Text())
	}
	if err := h.rt.SelectTab(key, 7); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("SelectTab(7) err = %v", err)
	}
	if got := len(h.patches); got != 3 {
		t.Errorf("patches = %d, want 3", got)
	}
}

func TestRuntime_FollowLink(t *testing.T) {
	h := newHarness(t)
	addTasks(h.mem)
	entries := h.pass(queryDoc)
	key := widgetKey(t, entries, decor.WidgetQuery)
	h.settle()

	if _, err := h.rt.Activate(key, "link:a.md#1"); err != nil {
		t.Fatal(err)
	}
	h.settle()
	links := h.mem.Links()
	if len(links) != 1 || links[0].Path != "a.md" || links[0].ID != 1 {
		t.Errorf("links = %+v", links)
	}
	if _, err := h.rt.Activate(key, "link:nowhere"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action err = %v", err)
	}
	if _, err := h.rt.Activate("query:none#0", "tab:0"); !errors.Is(err, ErrUnknownWidget) {
		t.Errorf("unknown widget err = %v", err)
	}
}

const habitDoc = "```habit\nhabits: [Read, Mood]\ndate_range: last_7_days\n```\n"

func addHabits(m *resolve.Memory) {
	m.AddHabit(resolve.Habit{ID: 1, Name: "Read", Type: resolve.HabitBoolean}, map[string]string{"2024-03-05": "true"})
	m.AddHabit(resolve.Habit{ID: 2, Name: "Mood", Type: resolve.HabitRating}, map[string]string{"2024-03-06": "4"})
}

func TestRuntime_EditHabitOptimistic(t *testing.T) {
	h := newHarness(t)
	addHabits(h.mem)
	entries := h.pass(habitDoc)
	key := widgetKey(t, entries, decor.WidgetHabit)
	h.settle()

	before := h.rt.instances[key].view.Text()
	if !strings.Contains(before, "Completed 2 of 14") {
		t.Fatalf("view = %q", before)
	}

	if _, err := h.rt.Activate(key, "habit:1:2024-03-06"); err != nil {
		t.Fatal(err)
	}
	after, _ := h.rt.View(key)
	if !strings.Contains(after.Text(), "Completed 3 of 14") {
		t.Errorf("optimistic view = %q", after.Text())
	}
	if h.caches.Habit.Len() != 1 {
		t.Fatal("cache cleared before the write completed")
	}

	h.settle()
	res, _ := h.mem.ResolveHabits(context.Background(), "habits: [Read]")
	if !res.Habits[0].Done("2024-03-06") {
		t.Error("mutation not applied")
	}
	v, _ := h.rt.View(key)
	if v.State != StateReady || !strings.Contains(v.Text(), "Completed 3 of 14") {
		t.Errorf("view after refetch = %q", v.Text())
	}
}

func TestRuntime_EditHabitErrors(t *testing.T) {
	h := newHarness(t)
	addHabits(h.mem)
	entries := h.pass(habitDoc)
	key := widgetKey(t, entries, decor.WidgetHabit)
	h.settle()

	tests := []struct {
		name  string
		id    int64
		value string
		want  error
	}{
		{"rating too high", 2, "6", ErrInvalidRating},
		{"rating zero", 2, "0", ErrInvalidRating},
		{"rating negative", 2, "-3", ErrInvalidRating},
		{"rating not a number", 2, "great", ErrInvalidRating},
		{"unknown habit", 9, "true", resolve.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.rt.EditHabit(key, tt.id, "2024-03-06", tt.value); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if err := h.rt.EditHabit(key, 2, "2024-03-06", "5"); err != nil {
		t.Errorf("valid rating err = %v", err)
	}
}

func TestRuntime_EditHabitNotEditable(t *testing.T) {
	h := newHarness(t)
	addHabits(h.mem)
	entries := h.pass("```habit\nhabits: [Read]\neditable: false\n```\n")
	key := widgetKey(t, entries, decor.WidgetHabit)
	h.settle()

	if err := h.rt.EditHabit(key, 1, "2024-03-06", ""); !errors.Is(err, ErrNotEditable) {
		t.Errorf("err = %v, want ErrNotEditable", err)
	}
	v, _ := h.rt.View(key)
	if len(v.Actions) != 0 {
		t.Errorf("read-only view offers actions: %v", v.Actions)
	}
}

type failingMutator struct{ resolve.Mutator }

func (failingMutator) ToggleHabit(context.Context, int64, string) error {
	return errors.New("offline")
}

func TestRuntime_EditHabitFailureReverts(t *testing.T) {
	h := newHarness(t)
	addHabits(h.mem)
	h.rt.env.Collab.Mutations = failingMutator{h.mem}
	entries := h.pass(habitDoc)
	key := widgetKey(t, entries, decor.WidgetHabit)
	h.settle()

	if err := h.rt.EditHabit(key, 1, "2024-03-06", ""); err != nil {
		t.Fatal(err)
	}
	v, _ := h.rt.View(key)
	if !strings.Contains(v.Text(), "Completed 3 of 14") {
		t.Fatalf("optimistic view = %q", v.Text())
	}

	h.settle()
	v, _ = h.rt.View(key)
	if v.State != StateReady || !strings.Contains(v.Text(), "Completed 2 of 14") {
		t.Errorf("view after failed write = %q", v.Text())
	}
}

const calloutDoc = "> [!warning] Careful\n> first\n> second\n\nafter\n"

func TestRuntime_ToggleCallout(t *testing.T) {
	h := newHarness(t)
	entries := h.pass(calloutDoc)
	key := widgetKey(t, entries, decor.WidgetCallout)

	v, _ := h.rt.View(key)
	if !strings.HasPrefix(v.Text(), "▾") || !strings.Contains(v.Text(), "Careful") {
		t.Fatalf("expanded view = %q", v.Text())
	}

	repass, err := h.rt.Activate(key, "fold")
	if err != nil || !repass {
		t.Fatalf("Activate = %v, %v", repass, err)
	}
	entries = h.pass(calloutDoc)
	replaces := 0
	for _, e := range entries {
		if e.Kind == decor.KindReplace {
			replaces++
			if e.To-e.From != len("> [!warning] Careful\n> first\n> second") {
				t.Errorf("collapsed replace = %v", e)
			}
		}
	}
	if replaces != 1 {
		t.Errorf("replaces = %d, want 1", replaces)
	}
	v, _ = h.rt.View(key)
	if !strings.HasPrefix(v.Text(), "▸") {
		t.Errorf("collapsed view = %q", v.Text())
	}
}

func TestRuntime_ToggleTaskEmitsEdit(t *testing.T) {
	h := newHarness(t)
	entries := h.pass("# Todo\n- [ ] Buy milk @errands !high\n")
	key := widgetKey(t, entries, decor.WidgetTask)

	v, _ := h.rt.View(key)
	if got := v.Text(); got != "☐ !high @errands " {
		t.Errorf("task view = %q", got)
	}
	if _, err := h.rt.Activate(key, "task"); err != nil {
		t.Fatal(err)
	}
	h.settle()
	edits := h.mem.Edits()
	want := resolve.Edit{From: 10, To: 11, Text: "x", Version: 1}
	if len(edits) != 1 || edits[0] != want {
		t.Errorf("edits = %+v, want %+v", edits, want)
	}
}

func TestRuntime_NoCollaborator(t *testing.T) {
	rt := NewRuntime(Env{}, nil, nil)
	doc := document.New(queryDoc, 1)
	entries := decor.NewAssembler().Assemble(decor.Input{Doc: doc, Blocks: scan.DefaultRegistry().Scan(doc), Active: active.Of(), Viewport: decor.All()})
	rt.Sync(entries, 1)
	key := widgetKey(t, entries, decor.WidgetQuery)
	v, _ := rt.View(key)
	if !errors.Is(v.Err, ErrNoCollaborator) {
		t.Errorf("Err = %v, want ErrNoCollaborator", v.Err)
	}
}
