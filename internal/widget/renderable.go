package widget

import (
	"context"
	"time"

	"github.com/dshills/livemark/internal/cache"
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/resolve"
)

// Result is the outcome of resolving a widget's data.
type Result struct {
	Data any
	Err  error
}

// Renderable is the capability set every widget kind implements. The
// runtime drives instances only through it.
type Renderable interface {
	// Kind returns the widget kind.
	Kind() decor.WidgetKind

	// Peek returns data that is available without blocking: a cache hit, a
	// local configuration error, or the static content of a synchronous
	// kind. ok is false when Load must run.
	Peek() (r Result, ok bool)

	// Load resolves data off the event loop. It must not touch state owned
	// by the loop.
	Load(ctx context.Context) Result

	// Render builds the view for the current spec and resolved data.
	Render(rc RenderContext) View

	// OnExternalEvent reports whether ev makes the resolved data stale.
	OnExternalEvent(ev event.Event, data any) bool
}

// RenderContext is what a renderer may read while building a view.
type RenderContext struct {
	Spec   *decor.WidgetSpec
	Data   any
	Glyphs Glyphs
	Now    time.Time
}

// Executor runs resolution work off the event loop.
type Executor interface {
	Submit(fn func(ctx context.Context))
}

// Poster schedules a callback on the event loop.
type Poster interface {
	Post(fn func())
}

// Env is shared by every widget of a runtime.
type Env struct {
	Caches        *cache.Set
	Collab        resolve.Collaborators
	Log           *logging.Logger
	Now           func() time.Time
	Glyphs        Glyphs
	MaxEmbedDepth int
}

func (e *Env) normalize() {
	if e.Caches == nil {
		e.Caches = cache.NewSet(cache.DefaultTTLs())
	}
	e.Log = logging.OrNop(e.Log)
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Glyphs == (Glyphs{}) {
		e.Glyphs = DefaultGlyphs()
	}
	if e.MaxEmbedDepth <= 0 {
		e.MaxEmbedDepth = resolve.MaxEmbedDepth
	}
}

// Build creates the renderable for spec.
func Build(spec *decor.WidgetSpec, env *Env) Renderable {
	switch spec.Kind {
	case decor.WidgetCallout:
		return newCallout()
	case decor.WidgetQuery:
		return newQuery(spec, env)
	case decor.WidgetHabit:
		return newHabit(spec, env)
	case decor.WidgetFrontmatter:
		return newFrontmatter(spec)
	case decor.WidgetEmbed:
		return newEmbed(spec, env)
	case decor.WidgetTask:
		return newTask()
	default:
		return newBullet()
	}
}

// static is embedded by kinds that need no resolution.
type static struct{}

func (static) Peek() (Result, bool)                  { return Result{}, true }
func (static) Load(context.Context) Result           { return Result{} }
func (static) OnExternalEvent(event.Event, any) bool { return false }
