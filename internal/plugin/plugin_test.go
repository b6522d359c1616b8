package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/scan/inline"
)

const todoScript = `
function scan_line(text)
    local out = {}
    for s, e in text:gmatch("()TODO()") do
        table.insert(out, livemark.token{from = s, to = e - 1, class = "todo"})
    end
    return out
end
`

func testLine(number, from int, text string) document.Line {
	return document.Line{Number: number, From: from, To: from + len(text), Text: text}
}

func TestHostScanLine(t *testing.T) {
	h, err := NewHost("todo", todoScript)
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer h.Close()

	toks, err := h.ScanLine(context.Background(), testLine(2, 40, "a TODO b TODO"), 0)
	if err != nil {
		t.Fatalf("ScanLine() error = %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	first := toks[0]
	if first.Kind != inline.KindPlugin || first.From != 42 || first.To != 46 {
		t.Errorf("first = %+v", first)
	}
	if first.Class != "todo" || first.Source != "todo" || first.Line != 2 {
		t.Errorf("first = %+v", first)
	}
	if first.Content != (document.Range{From: 42, To: 46}) {
		t.Errorf("content = %v", first.Content)
	}
}

func TestHostSkipAndHide(t *testing.T) {
	src := `function scan_line(text) return {{from = 1, to = 2, hide = true}, {from = 50, to = 60}} end`
	h, err := NewHost("hider", src)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	toks, err := h.ScanLine(context.Background(), testLine(0, 0, "> ab"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 {
		t.Fatalf("out-of-range span should be dropped, got %d tokens", len(toks))
	}
	if len(toks[0].Hide) != 1 || toks[0].Hide[0] != (document.Range{From: 2, To: 4}) {
		t.Errorf("hide = %v", toks[0].Hide)
	}
	if toks[0].Class != "" {
		t.Errorf("hidden span should carry no class, got %q", toks[0].Class)
	}
}

func TestHostDropsNonIntegralSpans(t *testing.T) {
	src := `function scan_line(text)
    return {
        {from = 1.5, to = 3},
        {from = 1, to = 0/0},
        {from = 1, to = math.huge},
        {from = 2, to = 3},
    }
end`
	h, err := NewHost("fractions", src)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	toks, err := h.ScanLine(context.Background(), testLine(0, 10, "abcd"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].From != 11 || toks[0].To != 13 {
		t.Errorf("tokens = %+v, want one token [11, 13)", toks)
	}
}

func TestHostRequiresScanLine(t *testing.T) {
	_, err := NewHost("empty", "x = 1")
	if !errors.Is(err, ErrNoScanFunc) {
		t.Errorf("error = %v, want ErrNoScanFunc", err)
	}
	var se *ScriptError
	if !errors.As(err, &se) || se.Plugin != "empty" {
		t.Errorf("error should be a ScriptError for the plugin, got %v", err)
	}
}

func TestSandboxRemovesFileAccess(t *testing.T) {
	tests := []string{
		`function scan_line(t) dofile("/etc/passwd") return {} end`,
		`function scan_line(t) return io.open("/etc/passwd") end`,
		`function scan_line(t) return os.getenv("HOME") end`,
		`function scan_line(t) return load("return 1")() end`,
	}
	for _, src := range tests {
		h, err := NewHost("evil", src, WithMaxFailures(1))
		if err != nil {
			t.Fatalf("NewHost(%q) error = %v", src, err)
		}
		if _, err := h.ScanLine(context.Background(), testLine(0, 0, "x"), 0); err == nil {
			t.Errorf("%q should fail in the sandbox", src)
		}
		if h.State() != StateDisabled {
			t.Errorf("state = %v, want disabled", h.State())
		}
		h.Close()
	}
}

func TestHostTimeout(t *testing.T) {
	h, err := NewHost("spin", `function scan_line(t) while true do end end`, WithCallTimeout(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if _, err := h.ScanLine(context.Background(), testLine(0, 0, "x"), 0); err == nil {
		t.Error("runaway script should time out")
	}
}

func TestManagerContainsFailures(t *testing.T) {
	m := NewManager(ManagerConfig{MaxFailures: 2}, nil)
	defer m.Close()

	if err := m.LoadString("todo", todoScript); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadString("broken", `function scan_line(t) error("boom") end`); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadString("todo", todoScript); err == nil {
		t.Error("duplicate plugin name should be rejected")
	}

	line := testLine(0, 0, "TODO")
	for i := 0; i < 3; i++ {
		toks := m.ScanLine(line, 0)
		if len(toks) != 1 {
			t.Fatalf("pass %d: got %d tokens, want 1", i, len(toks))
		}
	}
	broken, _ := m.Get("broken")
	if broken.State() != StateDisabled {
		t.Errorf("broken plugin state = %v, want disabled", broken.State())
	}
}

func TestManagerLoadAll(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "todo.lua")
	if err := os.WriteFile(good, []byte(todoScript), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.lua")

	m := NewManager(ManagerConfig{Paths: []string{good, missing}}, nil)
	defer m.Close()

	if err := m.LoadAll(); err == nil {
		t.Error("missing plugin file should be reported")
	}
	if names := m.Names(); len(names) != 1 || names[0] != "todo" {
		t.Errorf("names = %v", names)
	}
}

func TestManagerLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.lua", "a.lua"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(todoScript), 0644); err != nil {
			t.Fatal(err)
		}
	}
	m := NewManager(ManagerConfig{Paths: []string{dir}}, nil)
	defer m.Close()

	if err := m.LoadAll(); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if names := m.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v", names)
	}
}
