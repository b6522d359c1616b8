package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/livemark/internal/logging"
)

// Watcher delivers debounced fsnotify events.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	opts    Options
	dirs    map[string]bool
	pending map[string]*pending
	closed  bool

	events  chan Event
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     *logging.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

type pending struct {
	ev    Event
	timer *time.Timer
}

// New starts a watcher with nothing watched yet.
func New(opts ...Option) (*Watcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Buffer <= 0 {
		o.Buffer = 100
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		opts:    o,
		dirs:    make(map[string]bool),
		pending: make(map[string]*pending),
		events:  make(chan Event, o.Buffer),
		closeCh: make(chan struct{}),
		log:     logging.OrNop(o.Log).WithComponent("watch"),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events returns the channel of coalesced events. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// AddDir watches one directory.
func (w *Watcher) AddDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.dirs[abs] {
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.dirs[abs] = true
	return nil
}

// AddFile watches the directory holding path. Combine with a Named filter to
// hear only about that file.
func (w *Watcher) AddFile(path string) error {
	return w.AddDir(filepath.Dir(path))
}

// AddTree watches root and every directory below it that the filter accepts.
// Directories created later are added as they appear.
func (w *Watcher) AddTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && !w.accept(p, true) {
			return filepath.SkipDir
		}
		if err := w.AddDir(p); err != nil {
			w.log.Warn("watch %s: %v", p, err)
		}
		return nil
	})
}

// Dirs returns the number of watched directories.
func (w *Watcher) Dirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Run calls fn for every event until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}

// Flush delivers every pending event now.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p, pe := range w.pending {
		pe.timer.Stop()
		paths = append(paths, p)
	}
	w.mu.Unlock()
	for _, p := range paths {
		w.fire(p)
	}
}

// Close stops watching and closes the events channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for p, pe := range w.pending {
		pe.timer.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()

	w.wg.Wait()
	// Timers already past Stop may still be in fire; they check closed.
	w.mu.Lock()
	close(w.events)
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) accept(path string, isDir bool) bool {
	return w.opts.Filter == nil || w.opts.Filter(path, isDir)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case fe, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(fe)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify: %v", err)
		}
	}
}

func (w *Watcher) handle(fe fsnotify.Event) {
	op := convertOp(fe.Op)
	if op == 0 {
		return
	}
	if op.Has(OpCreate) {
		if info, err := os.Stat(fe.Name); err == nil && info.IsDir() {
			if w.accept(fe.Name, true) {
				if err := w.AddTree(fe.Name); err != nil {
					w.log.Warn("watch %s: %v", fe.Name, err)
				}
			}
			return
		}
	}
	if !w.accept(fe.Name, false) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if pe, ok := w.pending[fe.Name]; ok {
		pe.ev.Op |= op
		pe.ev.Time = time.Now()
		pe.timer.Reset(w.opts.Delay)
		return
	}
	path := fe.Name
	pe := &pending{ev: Event{Path: path, Op: op, Time: time.Now()}}
	pe.timer = time.AfterFunc(w.opts.Delay, func() { w.fire(path) })
	w.pending[path] = pe
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pe, ok := w.pending[path]
	if !ok || w.closed {
		return
	}
	delete(w.pending, path)
	select {
	case w.events <- pe.ev:
		w.delivered.Add(1)
	default:
		w.dropped.Add(1)
		w.log.Warn("event buffer full, dropped %s", path)
	}
}

// Stats returns delivered and dropped event counts.
func (w *Watcher) Stats() (delivered, dropped int64) {
	return w.delivered.Load(), w.dropped.Load()
}

func convertOp(fop fsnotify.Op) Op {
	var op Op
	if fop.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fop.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fop.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fop.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
