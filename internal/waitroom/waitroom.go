// Package waitroom coordinates the pre-game lobby: it polls a pending match
// until a second player arrives, then hands control to the router after a
// short grace delay. Navigation itself is the caller's job; the coordinator
// only signals it.
package waitroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/poll"
	"k8s.io/klog/v2"
)

// State names the coordinator's position in its lifecycle.
type State int

const (
	Loading State = iota
	Waiting
	ReadyToTransition
	Cancelled
	TransitionedOut
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Waiting:
		return "waiting"
	case ReadyToTransition:
		return "ready-to-transition"
	case Cancelled:
		return "cancelled"
	case TransitionedOut:
		return "transitioned-out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Client is the slice of the REST client the waiting room needs.
type Client interface {
	VerifyWaitingState(ctx context.Context, matchID int) (*api.WaitingState, error)
	CancelMatch(ctx context.Context, matchID int) error
}

// PollInterval is how often the lobby re-checks for an opponent.
const PollInterval = 2 * time.Second

// GraceDelay is the pause between "opponent found" and the actual redirect,
// so the found-player animation can finish.
const GraceDelay = 2 * time.Second

// Hooks are the coordinator's outward signals. All of them may be nil.
type Hooks struct {
	// OnChange fires after every observable change so the view re-renders.
	OnChange func()
	// NavigateToGame receives the backend's redirect path once the match
	// has started and the grace delay has elapsed.
	NavigateToGame func(path string)
	// NavigateHome fires after a cancel, whether or not the backend
	// acknowledged it.
	NavigateHome func()
}

// Coordinator drives one match's waiting room.
type Coordinator struct {
	matchID int
	client  Client
	sched   *poll.Scheduler
	hooks   Hooks

	pollEvery  time.Duration
	graceDelay time.Duration

	mu         sync.Mutex
	state      State
	players    int
	sess       *poll.Session
	graceTimer *time.Timer
	closed     bool
}

// New builds a Coordinator for matchID. Call Start to load and begin polling.
func New(client Client, sched *poll.Scheduler, matchID int, hooks Hooks) *Coordinator {
	return &Coordinator{
		matchID:    matchID,
		client:     client,
		sched:      sched,
		hooks:      hooks,
		state:      Loading,
		players:    1,
		pollEvery:  PollInterval,
		graceDelay: GraceDelay,
	}
}

// Start performs the initial lobby fetch and begins polling. A failed
// initial load is terminal — a missing match is not transient — and the
// caller should navigate away.
func (c *Coordinator) Start(ctx context.Context) error {
	st, err := c.client.VerifyWaitingState(ctx, c.matchID)
	if err != nil {
		klog.Errorf("waitroom: initial load of match %d failed: %v", c.matchID, err)
		return err
	}

	c.mu.Lock()
	c.state = Waiting
	c.players = st.TotalJugadores
	c.sess = c.sched.Start(poll.MatchKey(c.matchID), c.pollEvery, c.pollTick, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.state == Waiting && !c.closed
	})
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Coordinator) pollTick(ctx context.Context) error {
	st, err := c.client.VerifyWaitingState(ctx, c.matchID)
	if err != nil {
		// Transient; the next tick retries.
		return err
	}

	c.mu.Lock()
	if c.closed || c.state != Waiting {
		c.mu.Unlock()
		return nil
	}
	c.players = st.TotalJugadores

	if st.PuedeIniciar && st.Estado == api.MatchInProgress {
		// Stop polling before scheduling the redirect, so a late tick can
		// never race the navigation.
		c.state = ReadyToTransition
		sess := c.sess
		path := st.URLRedireccion
		c.graceTimer = time.AfterFunc(c.graceDelay, func() { c.transition(path) })
		c.mu.Unlock()
		if sess != nil {
			sess.Stop()
		}
		klog.Infof("waitroom: match %d ready, redirecting to %q after grace delay", c.matchID, path)
		c.notify()
		return nil
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// transition fires at the end of the grace delay.
func (c *Coordinator) transition(path string) {
	c.mu.Lock()
	if c.closed || c.state != ReadyToTransition {
		c.mu.Unlock()
		return
	}
	c.state = TransitionedOut
	c.graceTimer = nil
	c.mu.Unlock()

	c.notify()
	if c.hooks.NavigateToGame != nil {
		c.hooks.NavigateToGame(path)
	}
}

// Cancel is the explicit user action from the Waiting state. It stops
// polling, tells the backend to drop the match (best-effort) and always
// signals navigate-home: local exit never blocks on backend acknowledgment.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state != Waiting {
		c.mu.Unlock()
		return
	}
	c.state = Cancelled
	sess := c.sess
	c.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
	c.notify()

	if err := c.client.CancelMatch(ctx, c.matchID); err != nil {
		klog.Errorf("waitroom: cancel of match %d failed (leaving anyway): %v", c.matchID, err)
	}
	if c.hooks.NavigateHome != nil {
		c.hooks.NavigateHome()
	}
}

// Close tears the coordinator down synchronously: the poll session and any
// pending grace-delay navigation are cancelled. A redirect scheduled before
// Close must never fire after it.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	sess := c.sess
	c.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Players returns the last known participant count.
func (c *Coordinator) Players() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.players
}

// StatusMessage is the lobby's headline for the current participant count.
func (c *Coordinator) StatusMessage() string {
	if c.Players() >= 2 {
		return "¡Jugador encontrado! Iniciando partida..."
	}
	return "Esperando que otro jugador se una a la partida..."
}

// ProgressPercent is the fill level of the lobby's progress bar.
func (c *Coordinator) ProgressPercent() int {
	p := c.Players()
	if p > 2 {
		p = 2
	}
	return p * 100 / 2
}

func (c *Coordinator) notify() {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange()
	}
}
