package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/widget"
)

const emphasisDoc = "**one**\nplain\n**three**\n"

const queryDoc = "intro\n```query\nfilters:\n  - key: status\n    operator: equals\n    value: open\n```\n"

func newScheduler(t *testing.T, exec widget.Executor, post widget.Poster) (*Scheduler, *resolve.Memory) {
	t.Helper()
	mem := resolve.NewMemory()
	mem.AddItem(resolve.Item{Type: resolve.ItemTask, ID: 1, Path: "a.md", Props: `{"description":"Write report","status":"open"}`})
	rt := widget.NewRuntime(widget.Env{
		Caches: cache.NewSet(cache.DefaultTTLs()),
		Collab: resolve.Full(mem),
	}, exec, post)
	return New(rt), mem
}

func countKind(entries []decor.Entry, kind decor.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestSchedulerTriggers(t *testing.T) {
	s, _ := newScheduler(t, Inline{}, nil)
	var passes []Result
	s.OnPass(func(r Result) { passes = append(passes, r) })

	doc := document.New(emphasisDoc, 1)
	res := s.SetDocument(doc)
	if res.Trigger != TriggerDocument || res.Version != 1 || res.Seq != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := countKind(res.Entries, decor.KindMark); got != 2 {
		t.Errorf("marks = %d, want 2: %v", got, res.Entries)
	}
	if err := decor.Validate(res.Entries); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	// Cursor on line 0 shows it raw.
	res = s.SetSelection(document.Cursor(2))
	if res.Skipped || countKind(res.Entries, decor.KindMark) != 1 {
		t.Errorf("selection pass = %+v", res)
	}

	// Same active line: nothing to recompute.
	res = s.SetSelection(document.Cursor(5))
	if !res.Skipped || res.Trigger != TriggerSelection {
		t.Errorf("expected skipped selection pass, got %+v", res)
	}

	res = s.Refresh()
	if res.Skipped || res.Trigger != TriggerRefresh {
		t.Errorf("refresh = %+v", res)
	}

	if len(passes) != 4 {
		t.Errorf("OnPass called %d times, want 4", len(passes))
	}
	hits, misses := s.MemoStats()
	if misses != 1 || hits != 2 {
		t.Errorf("memo hits/misses = %d/%d, want 2/1", hits, misses)
	}
	if s.Last().Seq != res.Seq {
		t.Error("Last() is not the latest pass")
	}
}

func TestSchedulerViewportScopesInline(t *testing.T) {
	s, _ := newScheduler(t, Inline{}, nil)
	doc := document.New(emphasisDoc, 1)
	s.SetDocument(doc)

	res := s.SetViewport(2, 2)
	line := doc.Line(2)
	if len(res.Entries) == 0 {
		t.Fatal("no entries for visible line")
	}
	for _, e := range res.Entries {
		if e.From < line.From {
			t.Errorf("entry %v outside viewport", e)
		}
	}
	if res.Viewport != (decor.Viewport{FromLine: 2, ToLine: 2}) {
		t.Errorf("Viewport = %+v", res.Viewport)
	}

	if res = s.SetViewport(3, 1); res.Viewport.ToLine != 3 {
		t.Errorf("inverted viewport = %+v", res.Viewport)
	}
	if res = s.ShowAll(); countKind(res.Entries, decor.KindMark) != 2 {
		t.Errorf("ShowAll entries = %v", res.Entries)
	}
}

func TestSchedulerAsyncWidget(t *testing.T) {
	loop := NewLoop()
	pool := NewPool(2)
	defer pool.Close()
	s, _ := newScheduler(t, pool, loop)
	var patches []widget.Patch
	s.Runtime().OnPatch(func(p widget.Patch) { patches = append(patches, p) })

	res := s.SetDocument(document.New(queryDoc, 1))
	if res.Sync.Created != 1 || res.Sync.Loading != 1 {
		t.Fatalf("Sync = %+v, want one loading widget", res.Sync)
	}
	key := s.Runtime().Keys()[0]

	pool.Wait()
	if n := loop.Flush(); n != 1 {
		t.Fatalf("Flush() = %d, want 1", n)
	}
	if len(patches) != 1 || patches[0].Key != key {
		t.Fatalf("patches = %+v", patches)
	}
	v, _ := s.Runtime().View(key)
	if v.State != widget.StateReady || !strings.Contains(v.Text(), "Write report") {
		t.Errorf("view = %v %q", v.State, v.Text())
	}

	// The next pass reuses the resolved instance.
	res = s.SetDocument(document.New("changed\n"+queryDoc[len("intro\n"):], 2))
	if res.Sync.Reused != 1 || res.Sync.Loading != 0 {
		t.Errorf("Sync = %+v, want reused ready widget", res.Sync)
	}
}

func TestSchedulerActiveBlockDestroysWidget(t *testing.T) {
	s, _ := newScheduler(t, Inline{}, nil)
	doc := document.New(queryDoc, 1)
	s.SetDocument(doc)
	if s.Runtime().Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Runtime().Len())
	}

	// Cursor inside the block shows it raw.
	res := s.SetSelection(document.Cursor(doc.Line(2).From))
	if countKind(res.Entries, decor.KindReplace) != 0 || res.Sync.Destroyed != 1 {
		t.Errorf("entries = %v sync = %+v", res.Entries, res.Sync)
	}
}

func TestSchedulerNoDocument(t *testing.T) {
	s, _ := newScheduler(t, Inline{}, nil)
	s.SetDocument(document.New(queryDoc, 1))
	res := s.SetDocument(nil)
	if len(res.Entries) != 0 || res.Sync.Destroyed != 1 || s.Runtime().Len() != 0 {
		t.Errorf("result = %+v", res)
	}
	if res = s.SetSelection(document.Cursor(0)); res.Skipped {
		t.Error("selection without document skipped")
	}
}

func TestSchedulerTimings(t *testing.T) {
	var tick time.Duration
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := resolve.NewMemory()
	rt := widget.NewRuntime(widget.Env{Collab: resolve.Full(mem)}, Inline{}, nil)
	s := New(rt, WithClock(func() time.Time {
		tick += time.Millisecond
		return base.Add(tick)
	}))

	res := s.SetDocument(document.New(emphasisDoc, 1))
	if res.ScanTime != time.Millisecond || res.AssembleTime != time.Millisecond || res.Total != 3*time.Millisecond {
		t.Errorf("timings = %s %s %s", res.ScanTime, res.AssembleTime, res.Total)
	}
}

func TestSchedulerRescan(t *testing.T) {
	s, _ := newScheduler(t, Inline{}, nil)
	doc := document.New(emphasisDoc, 1)
	s.SetDocument(doc)
	s.Rescan()
	if _, misses := s.MemoStats(); misses != 2 {
		t.Errorf("misses = %d, want 2", misses)
	}
}

func TestTriggerString(t *testing.T) {
	tests := map[Trigger]string{
		TriggerDocument:  "document",
		TriggerSelection: "selection",
		TriggerViewport:  "viewport",
		TriggerRefresh:   "refresh",
		Trigger(42):      "unknown",
	}
	for tr, want := range tests {
		if got := tr.String(); got != want {
			t.Errorf("Trigger(%d).String() = %q, want %q", tr, got, want)
		}
	}
}
