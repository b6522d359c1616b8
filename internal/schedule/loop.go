package schedule

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/livemark/internal/logging"
)

// Loop serializes callbacks onto one goroutine. Post may be called from any
// goroutine; callbacks run in the order they were posted.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool

	running atomic.Bool
	ran     atomic.Uint64
	log     *logging.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used for recovered panics.
func WithLoopLogger(l *logging.Logger) LoopOption {
	return func(lp *Loop) {
		lp.log = l
	}
}

// NewLoop creates an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logging.OrNop(l.log).WithComponent("loop")
	return l
}

// Post queues fn. Posts after Close are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Ran returns the number of callbacks executed so far.
func (l *Loop) Ran() uint64 {
	return l.ran.Load()
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// RunOne executes the oldest queued callback, if any.
func (l *Loop) RunOne() bool {
	fn, ok := l.pop()
	if !ok {
		return false
	}
	l.call(fn)
	return true
}

// Flush executes queued callbacks until the queue is empty, including any
// posted while flushing. It returns the number executed.
func (l *Loop) Flush() int {
	n := 0
	for l.RunOne() {
		n++
	}
	return n
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("callback panic: %v", r)
		}
	}()
	l.ran.Add(1)
	fn()
}

// Run executes callbacks as they arrive until ctx is done or Close is called.
// Callers that drive the loop themselves use Flush instead.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		l.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Flush()
			return ErrLoopClosed
		case <-l.wake:
		}
	}
}

// Close stops Run after it drains the queue. Later posts are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}
