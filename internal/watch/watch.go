// Package watch reports file system changes through fsnotify.
//
// Rapid changes to one path are coalesced into a single Event after a quiet
// period, so an editor that saves by writing a temp file and renaming it over
// the original yields one notification. Directories are watched rather than
// files so that such atomic replaces are still seen.
package watch

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/livemark/internal/logging"
)

var (
	ErrClosed       = errors.New("watch: watcher is closed")
	ErrNotDirectory = errors.New("watch: not a directory")
)

// Op is a bit set of file operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

func (op Op) String() string {
	var parts []string
	for _, p := range []struct {
		op   Op
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}} {
		if op.Has(p.op) {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is one coalesced change.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Gone reports whether the path no longer exists under its name.
func (e Event) Gone() bool {
	return e.Op.Has(OpRemove) || e.Op.Has(OpRename)
}

// Filter decides whether a path is reported. isDir is set for directories
// seen while walking.
type Filter func(path string, isDir bool) bool

// Options configures a Watcher.
type Options struct {
	// Delay is the quiet period before an event is delivered.
	Delay time.Duration

	// Buffer is the capacity of the events channel.
	Buffer int

	// Filter drops paths for which it returns false.
	Filter Filter

	Log *logging.Logger
}

// Option configures a Watcher.
type Option func(*Options)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.Delay = d
	}
}

// WithBuffer sets the events channel capacity.
func WithBuffer(n int) Option {
	return func(o *Options) {
		o.Buffer = n
	}
}

// WithFilter sets the path filter.
func WithFilter(f Filter) Option {
	return func(o *Options) {
		o.Filter = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Options) {
		o.Log = l
	}
}

func defaultOptions() Options {
	return Options{
		Delay:  100 * time.Millisecond,
		Buffer: 100,
	}
}

// Extensions returns a filter accepting directories and files with one of
// the given extensions, skipping hidden entries.
func Extensions(exts ...string) Filter {
	return func(path string, isDir bool) bool {
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && base != "." && base != ".." {
			return false
		}
		if isDir {
			return true
		}
		ext := strings.ToLower(filepath.Ext(base))
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}

// Named returns a filter accepting only the given file paths.
func Named(paths ...string) Filter {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			want[abs] = true
		}
	}
	return func(path string, isDir bool) bool {
		if isDir {
			return false
		}
		abs, err := filepath.Abs(path)
		return err == nil && want[abs]
	}
}
