package schedule

import (
	"time"

	"github.com/dshills/livemark/internal/active"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/scan"
	"github.com/dshills/livemark/internal/widget"
)

// Trigger names what started a pass.
type Trigger uint8

const (
	TriggerDocument Trigger = iota
	TriggerSelection
	TriggerViewport
	TriggerRefresh
)

func (t Trigger) String() string {
	switch t {
	case TriggerDocument:
		return "document"
	case TriggerSelection:
		return "selection"
	case TriggerViewport:
		return "viewport"
	case TriggerRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Result is the output of one pass. A newer Result fully supersedes older ones.
type Result struct {
	Seq      uint64
	Trigger  Trigger
	Version  uint64
	Entries  []decor.Entry
	Active   active.LineSet
	Viewport decor.Viewport
	Blocks   int
	Sync     widget.SyncStats

	// Skipped is set when a selection change left the active lines as they
	// were; Entries are then the previous pass's.
	Skipped bool

	ScanTime     time.Duration
	AssembleTime time.Duration
	Total        time.Duration
}

// Scheduler decides when to run a pass and runs it. Every method must be
// called from the loop goroutine that also delivers widget results.
type Scheduler struct {
	registry *scan.Registry
	memo     *scan.Memo
	asm      *decor.Assembler
	rt       *widget.Runtime
	log      *logging.Logger
	now      func() time.Time

	plugins []decor.LineScanner
	inline  decor.LineScanner

	doc      *document.Document
	sel      document.Selection
	viewport decor.Viewport

	last    Result
	seq     uint64
	passFns []func(Result)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRegistry replaces the default block scanner registry.
func WithRegistry(r *scan.Registry) Option {
	return func(s *Scheduler) {
		s.registry = r
	}
}

// WithPlugins adds line scanners whose tokens yield to the built-in ones.
func WithPlugins(scanners ...decor.LineScanner) Option {
	return func(s *Scheduler) {
		s.plugins = append(s.plugins, scanners...)
	}
}

// WithInline replaces the built-in inline scanner.
func WithInline(sc decor.LineScanner) Option {
	return func(s *Scheduler) {
		s.inline = sc
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithClock sets the clock used for pass timings.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler feeding rt. It has no document until SetDocument.
func New(rt *widget.Runtime, opts ...Option) *Scheduler {
	s := &Scheduler{
		rt:       rt,
		viewport: decor.All(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = scan.DefaultRegistry()
	}
	s.memo = scan.NewMemo(s.registry)
	s.log = logging.OrNop(s.log).WithComponent("schedule")

	asmOpts := []decor.Option{decor.WithCollapseState(rt.Collapse())}
	if s.inline != nil {
		asmOpts = append(asmOpts, decor.WithInline(s.inline))
	}
	if len(s.plugins) > 0 {
		asmOpts = append(asmOpts, decor.WithPlugins(s.plugins...))
	}
	s.asm = decor.NewAssembler(asmOpts...)
	return s
}

// Runtime returns the widget runtime the scheduler feeds.
func (s *Scheduler) Runtime() *widget.Runtime { return s.rt }

// Document returns the current document, or nil.
func (s *Scheduler) Document() *document.Document { return s.doc }

// Selection returns the current selection.
func (s *Scheduler) Selection() document.Selection { return s.sel }

// Viewport returns the visible line window.
func (s *Scheduler) Viewport() decor.Viewport { return s.viewport }

// Last returns the most recent pass result.
func (s *Scheduler) Last() Result { return s.last }

// OnPass registers a callback run after every pass, skipped ones included.
func (s *Scheduler) OnPass(fn func(Result)) {
	s.passFns = append(s.passFns, fn)
}

// MemoStats returns block scan memo hits and misses.
func (s *Scheduler) MemoStats() (hits, misses uint64) {
	return s.memo.Stats()
}

// SetDocument replaces the document and runs a pass. A document with an
// unchanged version reuses the memoized blocks.
func (s *Scheduler) SetDocument(doc *document.Document) Result {
	s.doc = doc
	return s.run(TriggerDocument)
}

// SetSelection updates the selection. The pass is skipped when the set of
// active lines does not change.
func (s *Scheduler) SetSelection(sel document.Selection) Result {
	s.sel = sel
	if s.doc != nil && s.last.Version == s.doc.Version() && s.seq > 0 {
		lines := active.Lines(s.doc, sel)
		if lines.Equal(s.last.Active) {
			res := s.last
			res.Trigger = TriggerSelection
			res.Skipped = true
			res.Sync = widget.SyncStats{}
			s.fanOut(res)
			return res
		}
	}
	return s.run(TriggerSelection)
}

// SetViewport sets the visible lines, inclusive on both ends.
func (s *Scheduler) SetViewport(from, to int) Result {
	from = max(from, 0)
	to = max(to, from)
	s.viewport = decor.Viewport{FromLine: from, ToLine: to}
	return s.run(TriggerViewport)
}

// ShowAll resets the viewport to the whole document.
func (s *Scheduler) ShowAll() Result {
	s.viewport = decor.All()
	return s.run(TriggerViewport)
}

// Refresh reruns the pass with unchanged inputs. Stale widgets refetch and
// collapse toggles take effect.
func (s *Scheduler) Refresh() Result {
	return s.run(TriggerRefresh)
}

// Rescan drops the memoized blocks and refreshes. Used when the scanners
// themselves change.
func (s *Scheduler) Rescan() Result {
	s.memo.Invalidate()
	return s.run(TriggerRefresh)
}

func (s *Scheduler) run(trigger Trigger) Result {
	start := s.now()
	s.seq++
	res := Result{
		Seq:      s.seq,
		Trigger:  trigger,
		Viewport: s.viewport,
	}

	if s.doc == nil {
		res.Active = active.Of()
		res.Sync = s.rt.Sync(nil, 0)
		res.Total = s.now().Sub(start)
		s.finish(res)
		return res
	}

	res.Version = s.doc.Version()
	res.Active = active.Lines(s.doc, s.sel)

	blocks := s.memo.Blocks(s.doc)
	res.Blocks = len(blocks)
	scanned := s.now()
	res.ScanTime = scanned.Sub(start)

	res.Entries = s.asm.Assemble(decor.Input{
		Doc:      s.doc,
		Blocks:   blocks,
		Active:   res.Active,
		Viewport: s.viewport,
	})
	res.AssembleTime = s.now().Sub(scanned)

	res.Sync = s.rt.Sync(res.Entries, res.Version)
	res.Total = s.now().Sub(start)
	s.finish(res)
	return res
}

func (s *Scheduler) finish(res Result) {
	s.last = res
	s.log.Debug("pass %d (%s) v%d: %d entries, %d blocks, %d widgets (%d new, %d gone) in %s",
		res.Seq, res.Trigger, res.Version, len(res.Entries), res.Blocks,
		res.Sync.Live, res.Sync.Created, res.Sync.Destroyed, res.Total)
	s.fanOut(res)
}

func (s *Scheduler) fanOut(res Result) {
	for _, fn := range s.passFns {
		fn(res)
	}
}
