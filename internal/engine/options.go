package engine

import (
	"time"

	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/logging"
	"github.com/dshills/livemark/internal/scan"
	"github.com/dshills/livemark/internal/widget"
)

// Option configures an Engine during creation.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithBus shares an event bus with other publishers, such as the config
// reloader or the vault feed. By default the engine creates its own.
func WithBus(b *event.Bus) Option {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithExecutor replaces the fetch pool. schedule.Inline runs fetches on the
// calling goroutine.
func WithExecutor(exec widget.Executor) Option {
	return func(e *Engine) {
		e.exec = exec
	}
}

// WithClock sets the time source for widgets, caches and pass timings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRegistry replaces the default block scanner registry.
func WithRegistry(r *scan.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithCollapseStore keeps callout fold state in s, so it can outlive the
// engine.
func WithCollapseStore(s *widget.CollapseStore) Option {
	return func(e *Engine) {
		e.collapse = s
	}
}
