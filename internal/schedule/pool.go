package schedule

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/livemark/internal/logging"
)

// Pool runs submitted work on goroutines with an optional cap on how many
// run at once. Submit never blocks: work over the cap waits on its own
// goroutine for a slot.
type Pool struct {
	sem    *semaphore.Weighted
	max    int
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logging.Logger

	inFlight  atomic.Int64
	peak      atomic.Int64
	submitted atomic.Uint64
	dropped   atomic.Uint64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l *logging.Logger) PoolOption {
	return func(p *Pool) {
		p.log = l
	}
}

// NewPool creates a pool running at most maxInFlight jobs at once.
// maxInFlight <= 0 removes the cap.
func NewPool(maxInFlight int, opts ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		max:    max(maxInFlight, 0),
		ctx:    ctx,
		cancel: cancel,
	}
	if maxInFlight > 0 {
		p.sem = semaphore.NewWeighted(int64(maxInFlight))
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNop(p.log).WithComponent("pool")
	return p
}

// Submit starts fn. The context passed to fn is cancelled by Close.
func (p *Pool) Submit(fn func(ctx context.Context)) {
	if p.ctx.Err() != nil {
		p.dropped.Add(1)
		return
	}
	p.submitted.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.sem != nil {
			if err := p.sem.Acquire(p.ctx, 1); err != nil {
				p.dropped.Add(1)
				return
			}
			defer p.sem.Release(1)
		}
		p.enter()
		defer p.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("job panic: %v", r)
			}
		}()
		fn(p.ctx)
	}()
}

func (p *Pool) enter() {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Wait blocks until every submitted job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close cancels running jobs, drops queued ones and waits for both.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Max       int
	InFlight  int64
	Peak      int64
	Submitted uint64
	Dropped   uint64
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Max:       p.max,
		InFlight:  p.inFlight.Load(),
		Peak:      p.peak.Load(),
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Inline runs work in the caller. Passes that must finish with every widget
// resolved, such as one-shot rendering, use it in place of a Pool.
type Inline struct{}

// Submit runs fn immediately.
func (Inline) Submit(fn func(ctx context.Context)) {
	fn(context.Background())
}
