package waitroom

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/poll"
)

type fakeClient struct {
	mu        sync.Mutex
	state     api.WaitingState
	verifyErr error
	cancelErr error
	cancels   int
}

func (f *fakeClient) VerifyWaitingState(ctx context.Context, matchID int) (*api.WaitingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	cp := f.state
	return &cp, nil
}

func (f *fakeClient) CancelMatch(ctx context.Context, matchID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeClient) setState(st api.WaitingState) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
}

func waitingState(players int) api.WaitingState {
	return api.WaitingState{Estado: api.MatchPending, TotalJugadores: players}
}

func readyState() api.WaitingState {
	return api.WaitingState{
		Estado:         api.MatchInProgress,
		TotalJugadores: 2,
		PuedeIniciar:   true,
		DebeRedirigir:  true,
		URLRedireccion: "/juego/7",
	}
}

func newTestCoordinator(fc *fakeClient, hooks Hooks) *Coordinator {
	c := New(fc, poll.NewScheduler(), 7, hooks)
	c.pollEvery = 10 * time.Millisecond
	c.graceDelay = 30 * time.Millisecond
	return c
}

func waitCond(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestInitialLoadFailureIsTerminal(t *testing.T) {
	fc := &fakeClient{verifyErr: &api.NotFoundError{MatchID: 7}}
	c := newTestCoordinator(fc, Hooks{})

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected initial load error")
	}
	if c.State() != Loading {
		t.Errorf("state = %s, want loading", c.State())
	}
}

func TestWaitingTracksParticipantCount(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	c := newTestCoordinator(fc, Hooks{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.State() != Waiting {
		t.Fatalf("state = %s, want waiting", c.State())
	}
	if c.Players() != 1 {
		t.Errorf("players = %d, want 1", c.Players())
	}

	fc.setState(waitingState(2))
	waitCond(t, "participant count to update", func() bool { return c.Players() == 2 })
	if c.State() != Waiting {
		t.Errorf("state = %s, want still waiting without puedeIniciar", c.State())
	}
}

func TestReadyStopsPollingThenNavigatesAfterGrace(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	var gotPath atomic.Value
	c := newTestCoordinator(fc, Hooks{
		NavigateToGame: func(path string) { gotPath.Store(path) },
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	fc.setState(readyState())
	waitCond(t, "ready state", func() bool { return c.State() == ReadyToTransition })

	// Polling must already be dead before the grace delay elapses.
	select {
	case <-c.sess.Done():
	case <-time.After(time.Second):
		t.Fatal("poll session still running in ReadyToTransition")
	}
	if gotPath.Load() != nil {
		t.Fatal("navigation fired before the grace delay")
	}

	waitCond(t, "navigation", func() bool { return gotPath.Load() != nil })
	if got := gotPath.Load().(string); got != "/juego/7" {
		t.Errorf("navigated to %q, want /juego/7", got)
	}
	if c.State() != TransitionedOut {
		t.Errorf("state = %s, want transitioned-out", c.State())
	}
}

func TestCloseDuringGracePreventsNavigation(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	var navigated atomic.Bool
	c := newTestCoordinator(fc, Hooks{
		NavigateToGame: func(string) { navigated.Store(true) },
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	fc.setState(readyState())
	waitCond(t, "ready state", func() bool { return c.State() == ReadyToTransition })

	c.Close()
	time.Sleep(100 * time.Millisecond) // well past the grace delay
	if navigated.Load() {
		t.Error("navigation fired after Close during the grace window")
	}
}

func TestCancelStopsPollingAndAlwaysNavigatesHome(t *testing.T) {
	fc := &fakeClient{
		state:     waitingState(1),
		cancelErr: errors.New("backend unreachable"),
	}
	var home atomic.Bool
	c := newTestCoordinator(fc, Hooks{
		NavigateHome: func() { home.Store(true) },
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	c.Cancel(context.Background())

	if c.State() != Cancelled {
		t.Errorf("state = %s, want cancelled", c.State())
	}
	fc.mu.Lock()
	cancels := fc.cancels
	fc.mu.Unlock()
	if cancels != 1 {
		t.Errorf("CancelMatch called %d times, want 1", cancels)
	}
	// Home navigation happens even though the backend call failed.
	if !home.Load() {
		t.Error("NavigateHome not signalled after failed backend cancel")
	}

	select {
	case <-c.sess.Done():
	case <-time.After(time.Second):
		t.Fatal("poll session survived Cancel")
	}
}

func TestCancelIgnoredOutsideWaiting(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	var home atomic.Bool
	c := newTestCoordinator(fc, Hooks{
		NavigateHome: func() { home.Store(true) },
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	fc.setState(readyState())
	waitCond(t, "ready state", func() bool { return c.State() == ReadyToTransition })

	c.Cancel(context.Background())
	fc.mu.Lock()
	cancels := fc.cancels
	fc.mu.Unlock()
	if cancels != 0 {
		t.Errorf("Cancel acted during ReadyToTransition")
	}
	if home.Load() {
		t.Errorf("NavigateHome signalled during ReadyToTransition")
	}
}

func TestPollFailureKeepsWaiting(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	c := newTestCoordinator(fc, Hooks{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	fc.mu.Lock()
	fc.verifyErr = &api.NetworkError{Op: "VerifyWaitingState", Err: errors.New("timeout")}
	fc.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	if c.State() != Waiting {
		t.Fatalf("transient poll failure changed state to %s", c.State())
	}

	fc.mu.Lock()
	fc.verifyErr = nil
	fc.state = waitingState(2)
	fc.mu.Unlock()
	waitCond(t, "recovery after transient failure", func() bool { return c.Players() == 2 })
}

func TestStatusMessageAndProgress(t *testing.T) {
	fc := &fakeClient{state: waitingState(1)}
	c := newTestCoordinator(fc, Hooks{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.ProgressPercent() != 50 {
		t.Errorf("progress = %d, want 50", c.ProgressPercent())
	}
	fc.setState(waitingState(2))
	waitCond(t, "two players", func() bool { return c.Players() == 2 })
	if c.ProgressPercent() != 100 {
		t.Errorf("progress = %d, want 100", c.ProgressPercent())
	}
	if c.StatusMessage() != "¡Jugador encontrado! Iniciando partida..." {
		t.Errorf("status = %q", c.StatusMessage())
	}
}
