package widget

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
)

func viewOf(t *testing.T, h *harness, text string, kind decor.WidgetKind) View {
	t.Helper()
	entries := h.pass(text)
	h.settle()
	v, ok := h.rt.View(widgetKey(t, entries, kind))
	if !ok {
		t.Fatalf("no view for %s", kind)
	}
	return v
}

func assertContains(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(text, w) {
			t.Errorf("missing %q in:\n%s", w, text)
		}
	}
}

func TestQuery_Layouts(t *testing.T) {
	tests := []struct {
		name  string
		view  string
		wants []string
	}{
		{
			name:  "list",
			view:  "view_type: list\n  columns: [description, status]",
			wants: []string{"• Write report  (status: open)", "• Old  (status: done)"},
		},
		{
			name:  "kanban",
			view:  "view_type: kanban\n  kanban:\n    group_by: status\n    card_fields: [description]",
			wants: []string{"done (1)", "open (2)", "• Old", "• Call Bob"},
		},
		{
			name:  "card",
			view:  "view_type: card\n  card:\n    columns: 2\n    display_fields: [status]",
			wants: []string{"Write report", "status: open"},
		},
		{
			name:  "table",
			view:  "view_type: table\n  columns: [description, status]",
			wants: []string{"description  │ status", "Write report │ open"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			addTasks(h.mem)
			doc := "```query\nview:\n  " + tt.view + "\n```\n"
			v := viewOf(t, h, doc, decor.WidgetQuery)
			if v.State != StateReady {
				t.Fatalf("State = %v: %v", v.State, v.Err)
			}
			assertContains(t, v.Text(), append([]string{"Query Results (3)"}, tt.wants...)...)
			if !v.Block {
				t.Error("query view is not a block view")
			}
		})
	}
}

func TestQuery_ChipsCapped(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 12; i++ {
		h.mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: int64(i + 1), Path: "a.md",
			Props: `{"description":"t","tag":"v` + string(rune('a'+i)) + `"}`})
	}
	v := viewOf(t, h, "```query\nview:\n  columns: [description, tag]\n```\n", decor.WidgetQuery)

	chips := 0
	for id := range v.Actions {
		if strings.HasPrefix(id, "filter:tag=") {
			chips++
		}
	}
	if chips != maxChipValues {
		t.Errorf("chips = %d, want %d", chips, maxChipValues)
	}
}

func TestHabit_Views(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		wants []string
	}{
		{"horizontal", "habits: [Read]", []string{"Habit", "02-29", "03-06", "Read "}},
		{"vertical", "habits: [Read]\norientation: vertical", []string{"Date", "03-05", "✓"}},
		{"calendar", "habits: [Read]\nview: calendar", []string{"Mo Tu We Th Fr Sa Su", "29 01 02 03"}},
		{"streak", "habits: [Read]\nview: streak", []string{"current 1 · longest 1"}},
		{"list", "habits: [Read]\nview: list", []string{"☐ Read  1/7"}},
		{"summary off", "habits: [Read]\nshow_summary: false", []string{"Habits 2024-02-29 – 2024-03-06"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			addHabits(h.mem)
			v := viewOf(t, h, "```habit\n"+tt.body+"\n```\n", decor.WidgetHabit)
			if v.State != StateReady {
				t.Fatalf("State = %v: %v", v.State, v.Err)
			}
			assertContains(t, v.Text(), tt.wants...)
			hasSummary := strings.Contains(v.Text(), "Completed")
			if hasSummary == (tt.name == "summary off") {
				t.Errorf("summary shown = %v", hasSummary)
			}
		})
	}
}

func TestHabit_RatingCellCycles(t *testing.T) {
	h := newHarness(t)
	addHabits(h.mem)
	v := viewOf(t, h, "```habit\nhabits: [Mood]\n```\n", decor.WidgetHabit)

	a, ok := v.Action("habit:2:2024-03-06=5")
	if !ok {
		t.Fatalf("actions = %v", v.Actions)
	}
	if a.Kind != ActSetHabit || a.Value != "5" {
		t.Errorf("action = %+v", a)
	}
	assertContains(t, v.Text(), "★★★★")
}

func TestHabit_NumberCellCountsUp(t *testing.T) {
	h := newHarness(t)
	h.mem.AddHabit(resolve.Habit{ID: 3, Name: "Pages", Type: resolve.HabitNumber}, map[string]string{"2024-03-06": "12"})
	h.mem.AddHabit(resolve.Habit{ID: 4, Name: "Journal", Type: resolve.HabitText}, map[string]string{"2024-03-06": "calm"})
	v := viewOf(t, h, "```habit\nhabits: [Pages, Journal]\n```\n", decor.WidgetHabit)

	tests := []struct {
		id, value string
	}{
		{"habit:3:2024-03-06=13", "13"},
		{"habit:3:2024-03-05=1", "1"},
	}
	for _, tt := range tests {
		a, ok := v.Action(tt.id)
		if !ok {
			t.Fatalf("no action %s in %v", tt.id, v.Actions)
		}
		if a.Kind != ActSetHabit || a.Value != tt.value {
			t.Errorf("action %s = %+v", tt.id, a)
		}
	}
	for id, a := range v.Actions {
		if a.HabitID == 4 {
			t.Errorf("text habit offers action %s", id)
		}
	}
}

func TestStreaks(t *testing.T) {
	dates := []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"}
	tests := []struct {
		name    string
		done    []string
		current int
		longest int
	}{
		{"none", nil, 0, 0},
		{"all", dates, 5, 5},
		{"today pending", []string{"2024-03-03", "2024-03-04"}, 2, 2},
		{"broken", []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-05"}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := resolve.HabitWithEntries{Habit: resolve.Habit{Type: resolve.HabitBoolean}, Entries: map[string]resolve.HabitEntry{}}
			for _, d := range tt.done {
				hw.Entries[d] = resolve.HabitEntry{Date: d, Value: "true"}
			}
			cur, best := Streaks(hw, dates)
			if cur != tt.current || best != tt.longest {
				t.Errorf("Streaks = %d, %d, want %d, %d", cur, best, tt.current, tt.longest)
			}
		})
	}
}

func addNoteChain(m *resolve.Memory) {
	m.AddNote(resolve.Note{ID: 1, Path: "A.md", Title: "A", Content: "intro\n![[B]]\nend"})
	m.AddNote(resolve.Note{ID: 2, Path: "B.md", Title: "B", Content: "b-line\n![[C]]"})
	m.AddNote(resolve.Note{ID: 3, Path: "notes/C.md", Title: "C", Content: "![[D]]"})
	m.AddNote(resolve.Note{ID: 4, Path: "D.md", Title: "D", Content: "d"})
}

func TestEmbed_RecursionLimit(t *testing.T) {
	h := newHarness(t)
	addNoteChain(h.mem)
	v := viewOf(t, h, "See ![[A]] here\n", decor.WidgetEmbed)

	want := strings.Join([]string{
		"▣ A",
		"intro",
		"│ ▣ B",
		"│ b-line",
		"│ │ ▣ C",
		"│ │ │ ⚠ Maximum embed depth (3) exceeded at D",
		"end",
	}, "\n")
	if v.Text() != want {
		t.Errorf("view =\n%s\nwant\n%s", v.Text(), want)
	}
	if _, _, e := h.mem.Calls(); e != 3 {
		t.Errorf("embed calls = %d, want 3", e)
	}

	// A rebuilt instance resolves the whole tree from the cache.
	h.rt.Sync(nil, 99)
	viewOf(t, h, "See ![[A]] here\n", decor.WidgetEmbed)
	if _, _, e := h.mem.Calls(); e != 3 {
		t.Errorf("embed calls after cache hit = %d, want 3", e)
	}
}

func TestEmbed_StaleOnNestedSave(t *testing.T) {
	h := newHarness(t)
	addNoteChain(h.mem)
	viewOf(t, h, "![[A]]\n", decor.WidgetEmbed)

	if n := h.rt.Notify(event.NoteSavedEvent("notes/C.md")); n != 1 {
		t.Errorf("Notify(C) = %d, want 1", n)
	}
	if n := h.rt.Notify(event.NoteSavedEvent("Other.md")); n != 0 {
		t.Errorf("Notify(Other) = %d, want 0", n)
	}
}

func TestEmbed_MediaAndErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		state State
		want  string
	}{
		{"image", "![[photo.png|300]]\n", StateReady, "▣ image: photo.png [300] (/assets/photo.png)"},
		{"remote image", "![logo](https://example.org/logo.png)\n", StateReady, "▣ image: logo (https://example.org/logo.png)"},
		{"missing media", "![[clip.mp4]]\n", StateError, "Media not found: clip.mp4"},
		{"missing note", "![[Ghost]]\n", StateError, "Note not found: Ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mem.AddMedia("photo.png", "/assets/photo.png")
			v := viewOf(t, h, tt.doc, decor.WidgetEmbed)
			if v.State != tt.state {
				t.Fatalf("State = %v, want %v (%v)", v.State, tt.state, v.Err)
			}
			if !strings.Contains(v.Text(), tt.want) {
				t.Errorf("view = %q, want %q", v.Text(), tt.want)
			}
		})
	}
}

func TestEmbed_Section(t *testing.T) {
	h := newHarness(t)
	h.mem.AddNote(resolve.Note{ID: 1, Path: "Recipe.md", Title: "Recipe", Content: "# Recipe\n## Steps\nmix\n## Notes\nsalt"})
	v := viewOf(t, h, "![[Recipe#Steps]]\n", decor.WidgetEmbed)
	assertContains(t, v.Text(), "▣ Recipe › Steps", "mix")
	if strings.Contains(v.Text(), "salt") {
		t.Errorf("section leaked:\n%s", v.Text())
	}
}

func TestFrontmatter_View(t *testing.T) {
	h := newHarness(t)
	v := viewOf(t, h, "---\ntitle: Hello\ntags: [a, '#b']\n---\nbody\n", decor.WidgetFrontmatter)
	assertContains(t, v.Text(), "Properties", "title  Hello", "tags   a, b")

	v = viewOf(t, h, "---\nkey: [unclosed\n---\nbody\n", decor.WidgetFrontmatter)
	var cpe *ConfigParseError
	if v.State != StateError || !errors.As(v.Err, &cpe) {
		t.Errorf("malformed frontmatter: state %v, err %v", v.State, v.Err)
	}
}

func TestBullet_View(t *testing.T) {
	h := newHarness(t)
	v := viewOf(t, h, "- item\n", decor.WidgetBullet)
	if v.Text() != "• " || v.Block {
		t.Errorf("bullet view = %q block=%v", v.Text(), v.Block)
	}
}

func TestCallout_Icons(t *testing.T) {
	tests := []struct {
		typ    string
		family string
	}{
		{"warning", "warning"},
		{"caution", "warning"},
		{"tldr", "abstract"},
		{"FAQ", "question"},
		{"custom", "note"},
	}
	for _, tt := range tests {
		if got := CalloutFamily(tt.typ); got != tt.family {
			t.Errorf("CalloutFamily(%q) = %q, want %q", tt.typ, got, tt.family)
		}
		if CalloutIcon(tt.typ) == "" {
			t.Errorf("CalloutIcon(%q) empty", tt.typ)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		w    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 4, "abc…"},
		{"日本語テキスト", 5, "日本…"},
		{"abc", 1, "…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.w, "…"); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.w, got, tt.want)
		}
	}
	if got := fit("ab", 4, "…"); got != "ab  " {
		t.Errorf("fit = %q", got)
	}
}

func TestCollapseStore(t *testing.T) {
	s := NewCollapseStore()
	if !s.Collapsed("a", true) || s.Collapsed("a", false) {
		t.Error("default not honored")
	}
	if s.Toggle("a", true) {
		t.Error("Toggle from collapsed default should expand")
	}
	if s.Collapsed("a", true) {
		t.Error("toggle not recorded")
	}
	s.Set("b", true)
	s.Reset()
	if s.Collapsed("b", false) {
		t.Error("Reset kept state")
	}
}
