package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/resolve"
)

var testToday = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func newHost(t *testing.T) (*resolve.Memory, *Handler, string) {
	t.Helper()
	mem := resolve.NewMemory()
	mem.Today = func() time.Time { return testToday }
	mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 1, Path: "a.md", Props: `{"description":"Write report","status":"open","tags":["work","q1"]}`})
	mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 2, Path: "b.md", Props: `{"description":"Old","status":"done"}`})
	mem.AddHabit(resolve.Habit{ID: 1, Name: "Read", Type: resolve.HabitBoolean}, map[string]string{"2024-03-05": "true"})
	mem.AddNote(resolve.Note{ID: 7, Path: "projects/alpha.md", Title: "Alpha", Content: "# Alpha\n\n## Goals\nShip it\n"})

	h := NewHandler(resolve.Full(mem), nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return mem, h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig(url)
	cfg.CallTimeout = 2 * time.Second
	c := New(cfg, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResolveQuery(t *testing.T) {
	_, _, url := newHost(t)
	c := newClient(t, url)

	raw := "filters:\n  - key: status\n    operator: equals\n    value: open\ntabs:\n  - name: All\n    include_completed: true\n"
	res, err := c.ResolveQuery(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.TotalCount != 1 {
		t.Fatalf("items = %+v", res.Items)
	}
	it := res.Items[0]
	if it.ID != 1 || it.Path != "a.md" || it.Type != resolve.ItemTask {
		t.Errorf("item = %+v", it)
	}
	if it.Prop("description") != "Write report" {
		t.Errorf("description = %q", it.Prop("description"))
	}
	if tags := it.PropList("tags"); len(tags) != 2 || tags[1] != "q1" {
		t.Errorf("tags = %v", tags)
	}
	if len(res.Tabs) != 1 || res.Tabs[0].Name != "All" {
		t.Fatalf("tabs = %+v", res.Tabs)
	}
}

func TestResolveHabitsAndEmbed(t *testing.T) {
	_, _, url := newHost(t)
	c := newClient(t, url)
	ctx := context.Background()

	hres, err := c.ResolveHabits(ctx, "habits: [Read]\ndate_range: last_7_days\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(hres.Habits) != 1 || !hres.Habits[0].Done("2024-03-05") || hres.RangeEnd != "2024-03-06" {
		t.Errorf("habits = %+v", hres)
	}

	eres, err := c.ResolveEmbed(ctx, resolve.EmbedRequest{Target: "alpha", Section: "Goals", Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if eres.NoteID != 7 || eres.Title != "Alpha" || !strings.Contains(eres.Content, "Ship it") {
		t.Errorf("embed = %+v", eres)
	}

	missing, err := c.ResolveEmbed(ctx, resolve.EmbedRequest{Target: "nope", Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if missing.Error != "Note not found: nope" {
		t.Errorf("missing embed error = %q", missing.Error)
	}
}

func TestMutationsAndNavigation(t *testing.T) {
	mem, _, url := newHost(t)
	c := newClient(t, url)
	ctx := context.Background()

	if err := c.ToggleHabit(ctx, 1, "2024-03-06"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetNoteProperty(ctx, 1, "status", "done", "text"); err != nil {
		t.Fatal(err)
	}
	err := c.SetHabitEntry(ctx, 99, "2024-03-06", "3")
	if !errors.Is(err, resolve.ErrNotFound) {
		t.Errorf("SetHabitEntry(unknown) = %v, want ErrNotFound", err)
	}
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != CodeNotFound || re.Method != MethodSetHabitEntry {
		t.Errorf("remote error = %+v", re)
	}

	link := resolve.Link{ID: 7, Path: "projects/alpha.md", Title: "Alpha"}
	if err := c.FollowLink(ctx, link); err != nil {
		t.Fatal(err)
	}
	edit := resolve.Edit{From: 3, To: 4, Text: "x", Version: 9}
	if err := c.ApplyEdit(ctx, edit); err != nil {
		t.Fatal(err)
	}

	hres, _ := mem.ResolveHabits(ctx, "habits: [Read]\ndate_range: single_day\n")
	if !hres.Habits[0].Done("2024-03-06") {
		t.Error("toggle did not reach the host")
	}
	if got := mem.Links(); len(got) != 1 || got[0] != link {
		t.Errorf("links = %+v", got)
	}
	if got := mem.Edits(); len(got) != 1 || got[0] != edit {
		t.Errorf("edits = %+v", got)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
	got    chan struct{}
}

func (r *recorder) Publish(ev event.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func TestNotifications(t *testing.T) {
	_, h, url := newHost(t)
	rec := &recorder{got: make(chan struct{}, 4)}
	c := newClient(t, url, WithPublisher(rec))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.Conns() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.Notify(event.NoteSavedEvent("projects/alpha.md")); err != nil {
		t.Fatal(err)
	}
	if err := h.Notify(event.HabitLoggedEvent("1", "2024-03-06")); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		select {
		case <-rec.got:
		case <-time.After(2 * time.Second):
			t.Fatal("notification not delivered")
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[0].Topic != event.TopicNoteSaved || rec.events[0].Payload.(event.NoteSaved).Path != "projects/alpha.md" {
		t.Errorf("first event = %+v", rec.events[0])
	}
	if hl := rec.events[1].Payload.(event.HabitLogged); hl.HabitID != "1" || hl.Date != "2024-03-06" {
		t.Errorf("second event = %+v", rec.events[1])
	}
	if rec.events[0].Source != "bridge" {
		t.Errorf("source = %q", rec.events[0].Source)
	}

	if err := h.Notify(event.New(event.TopicConfigReloaded, event.ConfigReloaded{}, "test")); err == nil {
		t.Error("Notify(config.reloaded) = nil error")
	}
}

func TestBreakerOpensOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	cfg := DefaultConfig(url)
	cfg.MaxFailures = 2
	cfg.DialTimeout = 500 * time.Millisecond
	c := New(cfg)
	defer c.Close()

	for range 2 {
		if _, err := c.ResolveQuery(context.Background(), ""); err == nil {
			t.Fatal("call to closed server succeeded")
		}
	}
	if c.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", c.State())
	}
	if _, err := c.ResolveQuery(context.Background(), ""); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("call with open breaker = %v, want ErrOpenState", err)
	}
}

func TestRemoteErrorsKeepBreakerClosed(t *testing.T) {
	mem, _, url := newHost(t)
	mem.SetFail(errors.New("index unavailable"))
	cfg := DefaultConfig(url)
	cfg.MaxFailures = 2
	c := New(cfg)
	defer c.Close()

	for range 4 {
		_, err := c.ResolveQuery(context.Background(), "")
		var re *RemoteError
		if !errors.As(err, &re) || re.Code != CodeInternalError || !strings.Contains(re.Message, "index unavailable") {
			t.Fatalf("ResolveQuery() = %v", err)
		}
	}
	if c.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
}

func TestUnsupportedAndUnknown(t *testing.T) {
	h := NewHandler(resolve.Collaborators{}, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	if _, err := c.ResolveQuery(context.Background(), ""); !errors.Is(err, resolve.ErrUnsupported) {
		t.Errorf("ResolveQuery() = %v, want ErrUnsupported", err)
	}
	_, err := c.Call(context.Background(), "nope.method", "{}")
	var re *RemoteError
	if !errors.As(err, &re) || re.Code != CodeMethodNotFound {
		t.Errorf("Call(unknown) = %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	_, _, url := newHost(t)
	c := New(DefaultConfig(url))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ResolveQuery(context.Background(), ""); !errors.Is(err, ErrClosed) {
		t.Errorf("call after Close = %v, want ErrClosed", err)
	}
}

func TestCodecQueryRoundTrip(t *testing.T) {
	res := &resolve.QueryResult{
		Items:      []resolve.Item{{Type: resolve.ItemNote, ID: 3, Path: "n.md", Title: "N", Props: `{"rating":5}`}},
		TotalCount: 1,
		Tabs: []resolve.TabResult{{
			Name:  "Board",
			Items: []resolve.Item{{Type: resolve.ItemTask, ID: 4, Path: "t.md", Props: ""}},
			View:  resolve.ViewConfig{Type: resolve.ViewKanban, Kanban: &resolve.KanbanConfig{GroupBy: "status"}},
		}},
	}
	raw, err := encodeQuery(res)
	if err != nil {
		t.Fatal(err)
	}
	back, err := decodeQuery(gjson.Parse(raw))
	if err != nil {
		t.Fatal(err)
	}
	if back.Items[0].Props != `{"rating":5}` || back.Items[0].Title != "N" {
		t.Errorf("item = %+v", back.Items[0])
	}
	tab := back.Tabs[0]
	if tab.Items[0].Props != "{}" || tab.View.Type != resolve.ViewKanban || tab.View.Kanban.GroupBy != "status" {
		t.Errorf("tab = %+v", tab)
	}
}
