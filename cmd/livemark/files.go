package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/livemark/internal/resolve"
)

// errStaleEdit is returned when an edit was computed against an older
// version of the file than the one on display.
var errStaleEdit = errors.New("edit is for an older version of the document")

// fileEditor applies widget edits directly to the markdown file. The file
// watcher then reloads the document. Versions start at 1.
type fileEditor struct {
	mu      sync.Mutex
	path    string
	text    string
	version uint64
}

// track records the text shown for path at version.
func (f *fileEditor) track(path, text string, version uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path, f.text, f.version = path, text, version
}

// ApplyEdit implements resolve.Editor.
func (f *fileEditor) ApplyEdit(_ context.Context, edit resolve.Edit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if edit.Version != f.version {
		return errStaleEdit
	}
	if edit.From < 0 || edit.To < edit.From || edit.To > len(f.text) {
		return fmt.Errorf("edit range [%d, %d) outside document of %d bytes", edit.From, edit.To, len(f.text))
	}
	text := f.text[:edit.From] + edit.Text + f.text[edit.To:]
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, []byte(text), info.Mode().Perm()); err != nil {
		return err
	}
	// Edits wait for the reload of the written file.
	f.text, f.version = text, 0
	return nil
}

// linkPath resolves a followed link to a file on disk. Vault-relative paths
// are tried first, then paths relative to the current document.
func linkPath(link resolve.Link, vaultRoot, current string) (string, error) {
	var candidates []string
	if filepath.IsAbs(link.Path) {
		candidates = append(candidates, link.Path)
	} else {
		if vaultRoot != "" {
			candidates = append(candidates, filepath.Join(vaultRoot, link.Path))
		}
		candidates = append(candidates, filepath.Join(filepath.Dir(current), link.Path))
	}
	for _, c := range candidates {
		if filepath.Ext(c) == "" {
			c += ".md"
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", link.Path, os.ErrNotExist)
}
