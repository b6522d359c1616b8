package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/config"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/plugin"
	"github.com/dshills/livemark/internal/render"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/scan"
	"github.com/dshills/livemark/internal/schedule"
	"github.com/dshills/livemark/internal/widget"
)

// Engine is the live decoration engine for one document surface.
type Engine struct {
	cfg *config.Config
	log *logging.Logger
	now func() time.Time

	bus    *event.Bus
	ownBus bool
	sub    *event.Subscription

	loop     *schedule.Loop
	pool     *schedule.Pool
	exec     widget.Executor
	caches   *cache.Set
	collapse *widget.CollapseStore
	rt       *widget.Runtime
	sched    *schedule.Scheduler
	registry *scan.Registry
	plugins  *plugin.Manager
	refresh  *schedule.Debouncer

	closed atomic.Bool
}

// New creates an engine. A nil cfg uses config.Default. collab may leave any
// collaborator nil; widgets that need a missing one render an error view.
func New(cfg *config.Config, collab resolve.Collaborators, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	glyphs, err := render.Glyphs(cfg.Render.Glyphs)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log).WithComponent("engine")

	if e.bus == nil {
		e.bus = event.NewBus(event.WithLogger(e.log))
		e.ownBus = true
	}
	e.loop = schedule.NewLoop(schedule.WithLoopLogger(e.log))
	if e.exec == nil {
		e.pool = schedule.NewPool(cfg.Widgets.MaxInFlight, schedule.WithPoolLogger(e.log))
		e.exec = e.pool
	}
	e.caches = cache.NewSet(cfg.Cache.TTLs(), cache.WithClock(e.now))

	var rtOpts []widget.RuntimeOption
	if e.collapse != nil {
		rtOpts = append(rtOpts, widget.WithCollapseStore(e.collapse))
	}
	e.rt = widget.NewRuntime(widget.Env{
		Caches:        e.caches,
		Collab:        collab,
		Log:           e.log,
		Now:           e.now,
		Glyphs:        glyphs,
		MaxEmbedDepth: cfg.Widgets.MaxEmbedDepth,
	}, e.exec, e.loop, rtOpts...)

	schedOpts := []schedule.Option{
		schedule.WithLogger(e.log),
		schedule.WithClock(e.now),
	}
	if e.registry != nil {
		schedOpts = append(schedOpts, schedule.WithRegistry(e.registry))
	}
	if len(cfg.Plugins.Paths) > 0 {
		e.plugins = plugin.NewManager(cfg.Plugins.Manager(), e.log)
		if err := e.plugins.LoadAll(); err != nil {
			// Plugins that loaded are kept.
			e.log.Warn("loading plugins: %v", err)
		}
		if e.plugins.Len() > 0 {
			schedOpts = append(schedOpts, schedule.WithPlugins(e.plugins))
		}
	}
	e.sched = schedule.New(e.rt, schedOpts...)

	e.refresh = schedule.NewDebouncer(cfg.Widgets.RefreshDebounce.Std(), func() {
		e.loop.Post(func() {
			if !e.closed.Load() {
				e.sched.Refresh()
			}
		})
	})

	e.sub, err = e.bus.Subscribe(event.WildcardMulti, e.receive)
	if err != nil {
		e.shutdown()
		return nil, fmt.Errorf("subscribing to events: %w", err)
	}
	return e, nil
}

// Close stops fetches and the loop and releases plugins. It is safe to call
// more than once.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.shutdown()
}

func (e *Engine) shutdown() error {
	if e.refresh != nil {
		e.refresh.Cancel()
	}
	e.bus.Unsubscribe(e.sub)
	if e.ownBus {
		e.bus.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	e.loop.Close()
	if e.plugins != nil {
		return e.plugins.Close()
	}
	return nil
}

// Config returns the configuration in effect.
func (e *Engine) Config() *config.Config { return e.cfg }

// Bus returns the event bus the engine listens on.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Loop returns the event loop that owns the pipeline.
func (e *Engine) Loop() *schedule.Loop { return e.loop }

// Runtime returns the widget runtime.
func (e *Engine) Runtime() *widget.Runtime { return e.rt }

// Caches returns the widget data caches.
func (e *Engine) Caches() *cache.Set { return e.caches }

// Post runs fn on the loop goroutine. It may be called from any goroutine.
func (e *Engine) Post(fn func()) {
	e.loop.Post(fn)
}

// Run drives the loop until ctx is done or the engine is closed.
func (e *Engine) Run(ctx context.Context) error {
	err := e.loop.Run(ctx)
	if errors.Is(err, schedule.ErrLoopClosed) {
		return ErrClosed
	}
	return err
}

// Settle runs queued loop work and waits for in-flight fetches until no
// work remains. It is for hosts that drive the loop themselves and must not
// be used while Run is active.
func (e *Engine) Settle(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	w, _ := e.exec.(interface{ Wait() })
	for {
		e.loop.Flush()
		if w == nil {
			return nil
		}
		done := make(chan struct{})
		go func() {
			w.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
		if e.loop.Pending() == 0 {
			return nil
		}
	}
}

// SetDocument replaces the document and runs a pass.
func (e *Engine) SetDocument(doc *document.Document) schedule.Result {
	return e.sched.SetDocument(doc)
}

// SetSelection moves the selection. The pass is skipped when the active
// lines stay the same.
func (e *Engine) SetSelection(sel document.Selection) schedule.Result {
	return e.sched.SetSelection(sel)
}

// SetViewport limits inline decoration to lines from..to, inclusive.
func (e *Engine) SetViewport(from, to int) schedule.Result {
	return e.sched.SetViewport(from, to)
}

// ShowAll decorates the whole document.
func (e *Engine) ShowAll() schedule.Result {
	return e.sched.ShowAll()
}

// Refresh reruns the pass. Stale widgets refetch.
func (e *Engine) Refresh() schedule.Result {
	return e.sched.Refresh()
}

// Document returns the current document, or nil.
func (e *Engine) Document() *document.Document {
	return e.sched.Document()
}

// Selection returns the current selection.
func (e *Engine) Selection() document.Selection {
	return e.sched.Selection()
}

// Last returns the most recent pass result.
func (e *Engine) Last() schedule.Result {
	return e.sched.Last()
}

// Decorations returns the entries of the most recent pass.
func (e *Engine) Decorations() []decor.Entry {
	return e.sched.Last().Entries
}

// View returns the current view of a live widget.
func (e *Engine) View(key string) (widget.View, bool) {
	return e.rt.View(key)
}

// Display composes the current document, decorations and widget views into
// display lines.
func (e *Engine) Display() []render.DisplayLine {
	return render.Compose(e.sched.Document(), e.sched.Last().Entries, e.rt)
}

// OnPatch registers a callback for widget view updates that need no pass.
func (e *Engine) OnPatch(fn func(widget.Patch)) {
	e.rt.OnPatch(fn)
}

// OnPass registers a callback run after every pass.
func (e *Engine) OnPass(fn func(schedule.Result)) {
	e.sched.OnPass(fn)
}

// ToggleCallout folds or unfolds a callout and runs a pass. It returns the
// new collapsed state.
func (e *Engine) ToggleCallout(key string) (bool, error) {
	collapsed, err := e.rt.ToggleCallout(key)
	if err != nil {
		return false, err
	}
	e.sched.Refresh()
	return collapsed, nil
}

// SelectTab switches the active tab of a query widget.
func (e *Engine) SelectTab(key string, index int) error {
	return e.rt.SelectTab(key, index)
}

// ToggleFilter adds or removes a filter chip value on a query widget.
func (e *Engine) ToggleFilter(key, prop, value string) error {
	return e.rt.ToggleFilter(key, prop, value)
}

// ClearFilters removes every filter chip selection of a query widget.
func (e *Engine) ClearFilters(key string) error {
	return e.rt.ClearFilters(key)
}

// EditHabit writes a habit entry. An empty value toggles a boolean habit.
func (e *Engine) EditHabit(key string, habitID int64, date, value string) error {
	return e.rt.EditHabit(key, habitID, date, value)
}

// Activate runs an action offered by a widget view, running a pass when
// the decoration structure changed.
func (e *Engine) Activate(key, actionID string) error {
	repass, err := e.rt.Activate(key, actionID)
	if err != nil {
		return err
	}
	if repass {
		e.sched.Refresh()
	}
	return nil
}

// Publish delivers an external event. It may be called from any goroutine;
// the engine handles the event on the loop.
func (e *Engine) Publish(ev event.Event) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.bus.Publish(ev)
}

func (e *Engine) receive(ev event.Event) {
	if e.closed.Load() {
		return
	}
	e.loop.Post(func() {
		e.apply(ev)
	})
}

// apply drops the cache entries ev invalidates and marks affected widgets
// stale. A debounced refresh refetches them.
func (e *Engine) apply(ev event.Event) {
	if e.closed.Load() {
		return
	}
	switch p := ev.Payload.(type) {
	case event.NoteSaved:
		n := e.caches.Query.Clear()
		for _, target := range p.Targets() {
			n += e.caches.Embed.InvalidatePrefix(cache.EmbedPrefix(target))
		}
		e.log.Debug("note %s saved, %d cache entries dropped", p.Path, n)
	case event.PropertyChanged:
		e.caches.Query.Clear()
	case event.HabitLogged:
		e.caches.Habit.Clear()
	case event.ConfigReloaded:
		cfg, ok := p.Config.(*config.Config)
		if !ok {
			return
		}
		e.reconfigure(cfg)
		return
	}

	if n := e.rt.Notify(ev); n > 0 {
		e.log.Debug("%s: %d widgets stale", ev.Topic, n)
		e.refresh.Call()
	}
}

// reconfigure applies the settings that can change while running. Glyphs,
// plugins and the fetch cap keep their startup values.
func (e *Engine) reconfigure(cfg *config.Config) {
	e.caches.SetTTLs(cfg.Cache.TTLs())
	e.log.SetLevel(logging.ParseLevel(cfg.Log.Level))
	e.cfg = cfg
	e.log.Info("configuration reloaded from %s", cfg.Path)
}
