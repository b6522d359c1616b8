package event

import (
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/livemark/internal/logging"
)

// Handler receives published events.
type Handler func(Event)

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id      string
	pattern Topic
	handler Handler
	active  atomic.Bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Topic returns the subscribed pattern.
func (s *Subscription) Topic() Topic { return s.pattern }

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool { return s.active.Load() }

// Stats reports bus activity.
type Stats struct {
	Subscriptions int
	Published     uint64
	Delivered     uint64
	Panics        uint64
}

// Bus delivers events synchronously to matching subscriptions.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
	log    *logging.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for handler panics.
func WithLogger(l *logging.Logger) BusOption {
	return func(b *Bus) {
		b.log = l
	}
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logging.OrNop(b.log).WithComponent("event")
	return b
}

// Subscribe registers handler for topics matching pattern.
func (b *Bus) Subscribe(pattern Topic, handler Handler) (*Subscription, error) {
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &Subscription{id: uuid.NewString(), pattern: pattern, handler: handler}
	sub.active.Store(true)
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.active.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every matching subscription in registration order.
// Handler panics are recovered and returned joined.
func (b *Bus) Publish(ev Event) error {
	if !ev.Topic.IsValid() || ev.Topic.IsWildcard() {
		return ErrInvalidTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if ev.Topic.Matches(s.pattern) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)

	var errs []error
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		if err := b.deliver(s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(s *Subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			pe := &PanicError{SubscriptionID: s.id, Topic: ev.Topic, Value: r, Stack: string(debug.Stack())}
			b.log.Error("%v", pe)
			err = pe
		}
	}()
	s.handler(ev)
	b.delivered.Add(1)
	return nil
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Subscriptions: n,
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Panics:        b.panics.Load(),
	}
}

// Close drops all subscriptions. Further calls return ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.active.Store(false)
	}
	b.subs = nil
	b.closed = true
}
