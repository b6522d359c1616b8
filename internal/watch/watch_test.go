package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func next(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestWatcherCoalesces(t *testing.T) {
	dir := t.TempDir()
	w, err := New(WithDelay(50*time.Millisecond), WithFilter(Extensions(".md")))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.AddTree(dir); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "note.md")
	for i := range 3 {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := next(t, w)
	if ev.Path != path || !ev.Op.Has(OpWrite) && !ev.Op.Has(OpCreate) {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case extra := <-w.Events():
		t.Errorf("unexpected second event %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := New(WithDelay(10*time.Millisecond), WithFilter(Extensions(".md")))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.AddTree(dir); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "daily")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for w.Dirs() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("new directory not watched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	path := filepath.Join(sub, "today.md")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ev := next(t, w); ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
}

func TestWatcherNamedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "livemark.toml")
	if err := os.WriteFile(cfg, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New(WithDelay(10*time.Millisecond), WithFilter(Named(cfg)))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.AddFile(cfg); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg, []byte("[log]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ev := next(t, w); ev.Path != cfg {
		t.Errorf("event path = %q, want %q", ev.Path, cfg)
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel open after Close")
	}
	if err := w.AddDir(t.TempDir()); err != ErrClosed {
		t.Errorf("AddDir after Close = %v, want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestAddDirRejectsFile(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f := filepath.Join(t.TempDir(), "a.md")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(f); err != ErrNotDirectory {
		t.Errorf("AddDir(file) = %v, want ErrNotDirectory", err)
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{0, "none"},
		{OpWrite, "write"},
		{OpCreate | OpWrite, "create|write"},
		{OpRemove | OpRename, "remove|rename"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
	if !(Event{Op: OpRename}).Gone() || (Event{Op: OpWrite}).Gone() {
		t.Error("Gone() mismatch")
	}
}

func TestExtensionsFilter(t *testing.T) {
	f := Extensions(".md")
	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"/v/a.md", false, true},
		{"/v/A.MD", false, true},
		{"/v/a.txt", false, false},
		{"/v/.obsidian", true, false},
		{"/v/daily", true, true},
		{"/v/.hidden.md", false, false},
	}
	for _, tt := range tests {
		if got := f(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Extensions(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}
