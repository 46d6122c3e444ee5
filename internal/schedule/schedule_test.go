package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	s := New()
	defer s.Stop()

	done := make(chan struct{})
	s.After(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire in time")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Bool
	h := s.After(30*time.Millisecond, func() { fired.Store(true) })
	s.Cancel(h)

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled callback fired")
	}
}

func TestCancelUnknownHandleIsNoop(t *testing.T) {
	s := New()
	defer s.Stop()

	s.Cancel(Handle(9999))
}

func TestFiringOrder(t *testing.T) {
	s := New()
	defer s.Stop()

	order := make(chan int, 3)
	s.After(30*time.Millisecond, func() { order <- 3 })
	s.After(10*time.Millisecond, func() { order <- 1 })
	s.After(20*time.Millisecond, func() { order <- 2 })

	for i, want := range []int{1, 2, 3} {
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("entry %d: expected %d, got %d", i, want, got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for callback")
		}
	}
}
