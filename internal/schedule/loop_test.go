package schedule

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLoopFlushOrder(t *testing.T) {
	l := NewLoop()
	var got []int
	l.Post(func() { got = append(got, 1) })
	l.Post(func() {
		got = append(got, 2)
		l.Post(func() { got = append(got, 4) })
	})
	l.Post(func() { got = append(got, 3) })
	l.Post(nil)

	if n := l.Pending(); n != 3 {
		t.Fatalf("Pending() = %d, want 3", n)
	}
	if n := l.Flush(); n != 4 {
		t.Errorf("Flush() = %d, want 4", n)
	}
	if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if l.RunOne() {
		t.Error("RunOne() on empty queue = true")
	}
	if l.Ran() != 4 {
		t.Errorf("Ran() = %d, want 4", l.Ran())
	}
}

func TestLoopRecoversPanic(t *testing.T) {
	l := NewLoop()
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Flush()
	if !ran {
		t.Error("callback after panic did not run")
	}
}

func TestLoopRun(t *testing.T) {
	l := NewLoop()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	got := make(chan int, 2)
	l.Post(func() { got <- 1 })
	l.Post(func() { got <- 2 })
	for want := 1; want <= 2; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("got %d, want %d", v, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("callback not run")
		}
	}

	l.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrLoopClosed) {
			t.Errorf("Run() = %v, want ErrLoopClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	l.Post(func() { t.Error("post after close ran") })
	if l.Pending() != 0 {
		t.Error("post after close was queued")
	}
}

func TestLoopRunContext(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
