package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitTicks(t *testing.T, ticks *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for ticks.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least %d ticks, got %d", want, ticks.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionTicks(t *testing.T) {
	s := NewScheduler()
	var ticks atomic.Int32

	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	}, nil)
	defer sess.Stop()

	waitTicks(t, &ticks, 3, time.Second)
	if !s.Active("m1") {
		t.Errorf("expected session to be active")
	}
}

func TestShouldContinueSelfCancels(t *testing.T) {
	s := NewScheduler()
	var ticks atomic.Int32
	var stop atomic.Bool

	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		if ticks.Add(1) >= 3 {
			stop.Store(true)
		}
		return nil
	}, func() bool { return !stop.Load() })

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not self-cancel after shouldContinue turned false")
	}

	if s.Active("m1") {
		t.Errorf("self-terminated session still registered")
	}
	final := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != final {
		t.Errorf("ticks kept firing after self-cancel: %d -> %d", final, got)
	}
}

func TestStartReplacesPriorSession(t *testing.T) {
	s := NewScheduler()
	var oldTicks, newTicks atomic.Int32

	old := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		oldTicks.Add(1)
		return nil
	}, nil)

	waitTicks(t, &oldTicks, 1, time.Second)

	newSess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		newTicks.Add(1)
		return nil
	}, nil)
	defer newSess.Stop()

	select {
	case <-old.Done():
	case <-time.After(time.Second):
		t.Fatal("old session was not cancelled by replacement")
	}

	frozen := oldTicks.Load()
	waitTicks(t, &newTicks, 2, time.Second)
	if got := oldTicks.Load(); got != frozen {
		t.Errorf("old session still ticking after replacement: %d -> %d", frozen, got)
	}
	if !s.Active("m1") {
		t.Errorf("replacement session should be active")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := NewScheduler()
	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error { return nil }, nil)

	s.Cancel("m1")
	s.Cancel("m1")
	sess.Stop()
	s.Cancel("unknown-key")

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop after Cancel")
	}
}

func TestActionErrorDoesNotKillLoop(t *testing.T) {
	s := NewScheduler()
	var ticks atomic.Int32
	var sunk atomic.Int32
	s.ErrSink = func(key string, err error) { sunk.Add(1) }

	boom := errors.New("transient")
	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return boom
	}, nil)
	defer sess.Stop()

	waitTicks(t, &ticks, 3, time.Second)
	if sunk.Load() == 0 {
		t.Errorf("error sink never invoked")
	}
	if !s.Active("m1") {
		t.Errorf("session died on action error")
	}
}

func TestPauseSuspendsTicks(t *testing.T) {
	s := NewScheduler()
	var ticks atomic.Int32

	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	}, nil)
	defer sess.Stop()

	waitTicks(t, &ticks, 1, time.Second)
	sess.Pause()
	time.Sleep(30 * time.Millisecond) // let any in-flight tick drain
	frozen := ticks.Load()
	time.Sleep(60 * time.Millisecond)
	if got := ticks.Load(); got != frozen {
		t.Errorf("ticks fired while paused: %d -> %d", frozen, got)
	}

	sess.Resume()
	waitTicks(t, &ticks, frozen+1, time.Second)
}

func TestTicksAreSingleFlight(t *testing.T) {
	s := NewScheduler()
	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var ticks atomic.Int32

	sess := s.Start("m1", 5*time.Millisecond, func(ctx context.Context) error {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(20 * time.Millisecond) // slower than the interval
		inFlight.Add(-1)
		ticks.Add(1)
		return nil
	}, nil)
	defer sess.Stop()

	waitTicks(t, &ticks, 4, 2*time.Second)
	if overlapped.Load() {
		t.Errorf("two actions ran concurrently within one session")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{}, 1)
	var appliedAfterStop atomic.Bool
	var stopped atomic.Bool

	sess := s.Start("m1", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond) // simulate a slow response
		if ctx.Err() != nil {
			// Session cancelled while the request was in flight; the
			// result must not be applied.
			return ctx.Err()
		}
		if stopped.Load() {
			appliedAfterStop.Store(true)
		}
		return nil
	}, nil)

	<-started
	stopped.Store(true)
	sess.Stop()

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not terminate")
	}
	if appliedAfterStop.Load() {
		t.Errorf("in-flight action applied its result after Stop")
	}
}
