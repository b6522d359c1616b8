package resolve

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Note is a note held by Memory.
type Note struct {
	ID      int64
	Path    string
	Title   string
	Content string
}

// Memory implements every contract over in-process data. It is used by
// tests and by the CLI when no host is configured.
type Memory struct {
	mu     sync.Mutex
	items  []Item
	habits []HabitWithEntries
	notes  []Note
	media  map[string]string

	links []Link
	edits []Edit

	// Today returns the reference date for habit ranges.
	Today func() time.Time

	// Fail, when set, is returned by every resolve call.
	Fail error

	queryCalls atomic.Int64
	habitCalls atomic.Int64
	embedCalls atomic.Int64
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		media: make(map[string]string),
		Today: time.Now,
	}
}

// AddItem adds a query result item.
func (m *Memory) AddItem(it Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, it)
}

// AddHabit adds a habit with initial entries by date.
func (m *Memory) AddHabit(h Habit, entries map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hw := HabitWithEntries{Habit: h, Entries: make(map[string]HabitEntry)}
	for date, v := range entries {
		hw.Entries[date] = HabitEntry{HabitID: h.ID, Date: date, Value: v}
	}
	m.habits = append(m.habits, hw)
}

// AddNote adds a note.
func (m *Memory) AddNote(n Note) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
}

// AddMedia registers a media target and its asset path.
func (m *Memory) AddMedia(target, asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[strings.ToLower(target)] = asset
}

// Calls returns how many query, habit and embed resolutions ran.
func (m *Memory) Calls() (query, habit, embed int64) {
	return m.queryCalls.Load(), m.habitCalls.Load(), m.embedCalls.Load()
}

// Links returns the followed links.
func (m *Memory) Links() []Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Link(nil), m.links...)
}

// Edits returns the applied edits.
func (m *Memory) Edits() []Edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Edit(nil), m.edits...)
}

// ResolveQuery runs the query and each tab over the stored items.
func (m *Memory) ResolveQuery(ctx context.Context, raw string) (*QueryResult, error) {
	m.queryCalls.Add(1)
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	cfg, err := ParseQueryConfig(raw)
	if err != nil {
		return &QueryResult{Error: err.Error()}, nil
	}

	m.mu.Lock()
	items := append([]Item(nil), m.items...)
	m.mu.Unlock()

	res := &QueryResult{}
	res.Items, res.TotalCount = Execute(items, cfg.QuerySpec)
	for _, tab := range cfg.Tabs {
		page, total := Execute(items, tab.QuerySpec)
		res.Tabs = append(res.Tabs, TabResult{Name: tab.Name, Items: page, TotalCount: total, View: tab.View})
	}
	return res, nil
}

// ResolveHabits returns the selected habits over the configured range.
func (m *Memory) ResolveHabits(ctx context.Context, raw string) (*HabitResult, error) {
	m.habitCalls.Add(1)
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	cfg, err := ParseHabitConfig(raw)
	if err != nil {
		return &HabitResult{Error: err.Error()}, nil
	}
	start, end := cfg.Range(m.Today())

	want := make(map[string]bool)
	for _, h := range cfg.Habits {
		want[strings.ToLower(h)] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	res := &HabitResult{RangeStart: start.Format(DateLayout), RangeEnd: end.Format(DateLayout)}
	for _, h := range m.habits {
		if h.Habit.Archived && len(want) == 0 {
			continue
		}
		if len(want) > 0 && !want[strings.ToLower(h.Habit.Name)] && !want[strconv.FormatInt(h.Habit.ID, 10)] {
			continue
		}
		entries := make(map[string]HabitEntry)
		for date, e := range h.Entries {
			if date >= res.RangeStart && date <= res.RangeEnd {
				entries[date] = e
			}
		}
		res.Habits = append(res.Habits, HabitWithEntries{Habit: h.Habit, Entries: entries})
	}
	return res, nil
}

// ResolveEmbed finds a note by path or title, or a registered media target.
func (m *Memory) ResolveEmbed(ctx context.Context, req EmbedRequest) (*EmbedResult, error) {
	m.embedCalls.Add(1)
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if req.Depth > MaxEmbedDepth {
		return &EmbedResult{Path: req.Target, Error: fmt.Sprintf("Maximum embed depth (%d) exceeded", MaxEmbedDepth)}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if kind := MediaKindOf(req.Target); kind != MediaNone {
		asset, ok := m.media[strings.ToLower(req.Target)]
		if !ok {
			return &EmbedResult{Path: req.Target, Media: kind, Error: "Media not found: " + req.Target}, nil
		}
		return &EmbedResult{Path: req.Target, Media: kind, AssetPath: asset}, nil
	}

	for _, n := range m.notes {
		if !noteMatches(n, req.Target) {
			continue
		}
		content := n.Content
		if req.Section != "" {
			section, ok := ExtractSection(content, req.Section)
			if !ok {
				section = fmt.Sprintf("Section '%s' not found", req.Section)
			}
			content = section
		}
		return &EmbedResult{NoteID: n.ID, Path: n.Path, Title: n.Title, Content: content}, nil
	}
	return &EmbedResult{Path: req.Target, Error: "Note not found: " + req.Target}, nil
}

func noteMatches(n Note, target string) bool {
	t := strings.TrimSuffix(strings.ToLower(target), ".md")
	p := strings.ToLower(strings.TrimSuffix(n.Path, ".md"))
	return t == p || t == strings.ToLower(path.Base(p)) || t == strings.ToLower(n.Title)
}

// ToggleHabit flips a boolean habit on date.
func (m *Memory) ToggleHabit(ctx context.Context, habitID int64, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.habit(habitID)
	if h == nil {
		return fmt.Errorf("habit %d: %w", habitID, ErrNotFound)
	}
	if h.Done(date) {
		delete(h.Entries, date)
		return nil
	}
	h.Entries[date] = HabitEntry{HabitID: habitID, Date: date, Value: "true"}
	return nil
}

// SetHabitEntry stores a scalar value. An empty value removes the entry.
func (m *Memory) SetHabitEntry(ctx context.Context, habitID int64, date, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.habit(habitID)
	if h == nil {
		return fmt.Errorf("habit %d: %w", habitID, ErrNotFound)
	}
	if value == "" {
		delete(h.Entries, date)
		return nil
	}
	h.Entries[date] = HabitEntry{HabitID: habitID, Date: date, Value: value}
	return nil
}

func (m *Memory) habit(id int64) *HabitWithEntries {
	for i := range m.habits {
		if m.habits[i].Habit.ID == id {
			return &m.habits[i]
		}
	}
	return nil
}

// SetNoteProperty updates the property on every item of the note.
func (m *Memory) SetNoteProperty(ctx context.Context, noteID int64, key, value, typ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i, it := range m.items {
		if it.ID != noteID {
			continue
		}
		updated, err := it.WithProp(key, value)
		if err != nil {
			return err
		}
		m.items[i] = updated
		found = true
	}
	if !found {
		return fmt.Errorf("note %d: %w", noteID, ErrNotFound)
	}
	return nil
}

// FollowLink records the link.
func (m *Memory) FollowLink(ctx context.Context, link Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

// ApplyEdit records the edit.
func (m *Memory) ApplyEdit(ctx context.Context, edit Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit)
	return nil
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fail
}

// SetFail makes every later resolve call return err. Nil clears it.
func (m *Memory) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = err
}
