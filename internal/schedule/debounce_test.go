package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerZeroDelay(t *testing.T) {
	n := 0
	d := NewDebouncer(0, func() { n++ })
	d.Call()
	d.Call()
	if n != 2 || d.Pending() {
		t.Errorf("calls = %d pending = %v, want 2 and false", n, d.Pending())
	}
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	n := 0
	d := NewDebouncer(time.Hour, func() { n++ })
	d.Call()
	d.Call()
	if !d.Pending() {
		t.Fatal("Pending() = false after Call")
	}
	if !d.Flush() || n != 1 {
		t.Fatalf("Flush: calls = %d, want 1", n)
	}
	if d.Flush() {
		t.Error("second Flush ran the callback")
	}

	d.Call()
	d.Cancel()
	if d.Pending() || d.Flush() || n != 1 {
		t.Errorf("after Cancel: pending = %v calls = %d", d.Pending(), n)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var n atomic.Int64
	fired := make(chan struct{}, 4)
	d := NewDebouncer(20*time.Millisecond, func() {
		n.Add(1)
		fired <- struct{}{}
	})
	for range 5 {
		d.Call()
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
	time.Sleep(50 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("calls = %d, want 1", n.Load())
	}
}
