package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/scan"
)

// Note is one indexed markdown file.
type Note struct {
	ID      int64
	Path    string // slash-separated, relative to the root
	Title   string
	Aliases []string
	Content string
}

// Options configures a Vault.
type Options struct {
	// Jobs bounds concurrent file reads while indexing. Zero uses GOMAXPROCS.
	Jobs int
	Log  *logging.Logger
}

// Option configures a Vault.
type Option func(*Options)

// WithJobs bounds indexing concurrency.
func WithJobs(n int) Option {
	return func(o *Options) {
		o.Jobs = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Options) {
		o.Log = l
	}
}

// Vault is an index of the notes and media under one directory. It is safe
// for concurrent use.
type Vault struct {
	root string
	opts Options
	log  *logging.Logger

	mu     sync.RWMutex
	notes  map[string]*Note    // by relative path
	keys   map[string][]string // lookup key -> relative paths
	media  map[string]string   // lowercase relative path or base name -> relative path
	nextID int64
	closed bool
}

// Open indexes root and returns the vault.
func Open(ctx context.Context, root string, opts ...Option) (*Vault, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	v := &Vault{
		root: abs,
		opts: o,
		log:  logging.OrNop(o.Log).WithComponent("vault"),
	}
	if err := v.Reindex(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Root returns the absolute root directory.
func (v *Vault) Root() string { return v.root }

// Reindex rebuilds the whole index from disk.
func (v *Vault) Reindex(ctx context.Context) error {
	var notePaths, mediaPaths []string
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != v.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case strings.EqualFold(filepath.Ext(name), ".md"):
			notePaths = append(notePaths, path)
		case resolve.MediaKindOf(name) != resolve.MediaNone:
			mediaPaths = append(mediaPaths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("vault: walk %s: %w", v.root, err)
	}
	// IDs follow path order so they are stable across reindexing.
	sort.Strings(notePaths)

	jobs := v.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	notes := make([]*Note, len(notePaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range notePaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := v.load(path)
			if err != nil {
				return err
			}
			notes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.notes = make(map[string]*Note, len(notes))
	v.keys = make(map[string][]string)
	v.media = make(map[string]string, len(mediaPaths))
	v.nextID = 0
	for _, n := range notes {
		v.nextID++
		n.ID = v.nextID
		v.insert(n)
	}
	for _, p := range mediaPaths {
		v.addMedia(v.rel(p))
	}
	v.log.Debug("indexed %d notes and %d media files", len(notes), len(mediaPaths))
	return nil
}

// Len returns the number of indexed notes.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.notes)
}

// Notes returns the indexed notes ordered by path.
func (v *Vault) Notes() []Note {
	v.mu.RLock()
	out := make([]Note, 0, len(v.notes))
	for _, n := range v.notes {
		out = append(out, *n)
	}
	v.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Lookup finds a note by relative path, base name, title or alias, ignoring
// case and the .md extension. When several notes share a key the shortest
// path wins.
func (v *Vault) Lookup(target string) (Note, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	paths := v.keys[lookupKey(target)]
	if len(paths) == 0 {
		return Note{}, false
	}
	return *v.notes[paths[0]], true
}

// Update re-reads one note after it changed on disk. A missing file removes
// the note. It returns the relative path.
func (v *Vault) Update(path string) (string, error) {
	abs, err := v.abs(path)
	if err != nil {
		return "", err
	}
	rel := v.rel(abs)
	n, err := v.load(abs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return rel, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return rel, ErrClosed
	}
	old, had := v.notes[rel]
	if had {
		v.remove(old)
	}
	if n == nil {
		return rel, nil
	}
	if had {
		n.ID = old.ID
	} else {
		v.nextID++
		n.ID = v.nextID
	}
	v.insert(n)
	return rel, nil
}

// UpdateMedia adds or removes a media file after it changed on disk.
func (v *Vault) UpdateMedia(path string, gone bool) {
	abs, err := v.abs(path)
	if err != nil {
		return
	}
	rel := v.rel(abs)
	v.mu.Lock()
	defer v.mu.Unlock()
	if gone {
		for k, p := range v.media {
			if p == rel {
				delete(v.media, k)
			}
		}
		return
	}
	v.addMedia(rel)
}

// Close releases the index.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.notes = nil
	v.keys = nil
	v.media = nil
	return nil
}

func (v *Vault) load(abs string) (*Note, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	content := string(data)
	rel := v.rel(abs)
	n := &Note{Path: rel, Content: content}

	if body, ok := frontmatter(content); ok {
		fm := scan.ParseFrontmatter(body)
		for _, p := range fm.Properties {
			if strings.EqualFold(p.Key, "title") && p.Value != "" {
				n.Title = p.Value
			}
		}
		n.Aliases = fm.Aliases
	}
	if n.Title == "" {
		for _, h := range resolve.Headings(content) {
			if h.Level == 1 {
				n.Title = h.Text
				break
			}
		}
	}
	if n.Title == "" {
		n.Title = strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	}
	return n, nil
}

// insert indexes n. The caller holds mu.
func (v *Vault) insert(n *Note) {
	v.notes[n.Path] = n
	keys := []string{lookupKey(n.Path), lookupKey(filepath.Base(n.Path)), lookupKey(n.Title)}
	for _, a := range n.Aliases {
		keys = append(keys, lookupKey(a))
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		paths := append(v.keys[k], n.Path)
		sort.Slice(paths, func(i, j int) bool {
			if len(paths[i]) != len(paths[j]) {
				return len(paths[i]) < len(paths[j])
			}
			return paths[i] < paths[j]
		})
		v.keys[k] = paths
	}
}

// remove drops n from the index. The caller holds mu.
func (v *Vault) remove(n *Note) {
	delete(v.notes, n.Path)
	for k, paths := range v.keys {
		out := paths[:0]
		for _, p := range paths {
			if p != n.Path {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			delete(v.keys, k)
		} else {
			v.keys[k] = out
		}
	}
}

// addMedia indexes a media file. The caller holds mu.
func (v *Vault) addMedia(rel string) {
	v.media[strings.ToLower(rel)] = rel
	base := strings.ToLower(filepath.Base(rel))
	if cur, ok := v.media[base]; !ok || len(rel) < len(cur) {
		v.media[base] = rel
	}
}

func (v *Vault) abs(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(v.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return path, nil
}

func (v *Vault) rel(abs string) string {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func lookupKey(s string) string {
	s = strings.TrimSpace(filepath.ToSlash(s))
	s = strings.TrimPrefix(s, "./")
	if strings.EqualFold(filepath.Ext(s), ".md") {
		s = s[:len(s)-3]
	}
	return strings.ToLower(s)
}

// frontmatter returns the YAML between a leading "---" line and its closing
// delimiter.
func frontmatter(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != "---" {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		switch strings.TrimRight(lines[i], " \t\r") {
		case "---", "...":
			return strings.Join(lines[1:i], "\n"), true
		}
	}
	return "", false
}
