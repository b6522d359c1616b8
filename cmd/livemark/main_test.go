package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/dshills/livemark/internal/resolve"
)

const note = "# Title\n\n> [!tip] Hint\n> body text\n\nplain **bold** line\n"

func writeNote(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(path, []byte(note), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error", "--glyphs", "ascii", "--color", "off"))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestRenderCommand(t *testing.T) {
	path := writeNote(t)

	out := execute(t, "render", path, "--line", "-1", "--width", "0")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if lines[0] != "Title" {
		t.Errorf("heading = %q, want marker hidden", lines[0])
	}
	if strings.Contains(out, "**") {
		t.Errorf("emphasis markers shown:\n%s", out)
	}
	if strings.Contains(out, "[!tip]") {
		t.Errorf("callout marker shown:\n%s", out)
	}
	if !strings.Contains(out, "body text") {
		t.Errorf("callout body missing:\n%s", out)
	}

	out = execute(t, "render", path, "--line", "0", "--width", "0")
	if !strings.HasPrefix(out, "# Title\n") {
		t.Errorf("active heading = %q, want raw", strings.SplitN(out, "\n", 2)[0])
	}
}

func TestDecorationsCommand(t *testing.T) {
	path := writeNote(t)

	out := execute(t, "decorations", path, "--line", "-1", "--format", "json", "--views=false")
	var kinds []string
	callouts := 0
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !gjson.Valid(line) {
			t.Fatalf("invalid JSON line %q", line)
		}
		obj := gjson.Parse(line)
		kinds = append(kinds, obj.Get("kind").String())
		if obj.Get("widget.kind").String() == "callout" {
			callouts++
		}
		if obj.Get("from").Int() > obj.Get("to").Int() {
			t.Errorf("entry %s has from > to", line)
		}
	}
	if callouts != 1 {
		t.Errorf("callout widgets = %d, want 1", callouts)
	}
	if !strings.Contains(strings.Join(kinds, " "), "hide") {
		t.Errorf("kinds = %v, want a hide entry", kinds)
	}

	out = execute(t, "decorations", path, "--line", "-1", "--format", "text", "--views")
	if !strings.HasPrefix(out, "FROM") {
		t.Errorf("text output missing header:\n%s", out)
	}
	if !strings.Contains(out, "[callout ") {
		t.Errorf("views missing:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	out := execute(t, "config", "--theme", "mono")
	if !strings.Contains(out, `theme = 'mono'`) && !strings.Contains(out, `theme = "mono"`) {
		t.Errorf("config output missing theme override:\n%s", out)
	}
}

func TestLinkPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alpha.md"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	current := filepath.Join(dir, "note.md")

	got, err := linkPath(resolve.Link{Path: "alpha"}, "", current)
	if err != nil || got != filepath.Join(dir, "alpha.md") {
		t.Errorf("linkPath(alpha) = %q, %v", got, err)
	}
	got, err = linkPath(resolve.Link{Path: "alpha.md"}, dir, "/elsewhere/x.md")
	if err != nil || got != filepath.Join(dir, "alpha.md") {
		t.Errorf("linkPath(alpha.md) via vault = %q, %v", got, err)
	}
	if _, err := linkPath(resolve.Link{Path: "missing"}, dir, current); err == nil {
		t.Error("missing link resolved")
	}
}

func TestFileEditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.md")
	text := "- [ ] one\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	f := &fileEditor{}
	f.track(path, text, 3)

	if err := f.ApplyEdit(t.Context(), resolve.Edit{From: 3, To: 4, Text: "x", Version: 2}); err != errStaleEdit {
		t.Errorf("old version: err = %v, want errStaleEdit", err)
	}
	if err := f.ApplyEdit(t.Context(), resolve.Edit{From: 3, To: 4, Text: "x", Version: 3}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "- [x] one\n" {
		t.Errorf("file = %q", data)
	}
	if err := f.ApplyEdit(t.Context(), resolve.Edit{From: 3, To: 4, Text: " ", Version: 3}); err != errStaleEdit {
		t.Errorf("edit before reload: err = %v, want errStaleEdit", err)
	}
	f.track(path, string(data), 4)
	if err := f.ApplyEdit(t.Context(), resolve.Edit{From: 40, To: 41, Text: "x", Version: 4}); err == nil {
		t.Error("out of range edit applied")
	}
}
