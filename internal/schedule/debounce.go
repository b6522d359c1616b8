package schedule

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into one callback that runs once the
// calls stop for the configured delay. A vault sync touching many notes
// becomes a single refresh. It is safe for concurrent use.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // bumped whenever an armed timer is superseded
	armed bool
}

// NewDebouncer creates a debouncer. A zero delay makes Call synchronous.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Call arms the callback, restarting the quiet period of an armed one.
func (d *Debouncer) Call() {
	if d.delay <= 0 {
		d.Cancel()
		d.fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	gen := d.disarm()
	d.armed = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.armed, d.timer = false, nil
	d.mu.Unlock()
	d.fn()
}

// disarm stops the timer and returns the new generation. d.mu must be held.
func (d *Debouncer) disarm() uint64 {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return d.gen
}

// Flush runs an armed callback now and reports whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	d.disarm()
	armed := d.armed
	d.armed = false
	d.mu.Unlock()
	if armed {
		d.fn()
	}
	return armed
}

// Cancel drops an armed callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	d.armed = false
}

// Pending reports whether a callback is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}
