// Package engine holds the turn state machine for a running match: whose
// turn it is, the colors tapped so far, the prefix check against the target
// sequence, and the submission gate. The backend stays the single source of
// truth; the engine replaces its snapshot wholesale on every poll.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/poll"
	"k8s.io/klog/v2"
)

// State names the engine's position in the turn cycle.
type State int

const (
	// AwaitingRound: not this player's move (or no round loaded yet).
	AwaitingRound State = iota
	// AccumulatingSelection: this player's move; taps are being collected.
	AccumulatingSelection
	// Submitting: a completed sequence is in flight; input is locked.
	Submitting
	// Finished: terminal; polling has stopped.
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingRound:
		return "awaiting-round"
	case AccumulatingSelection:
		return "accumulating"
	case Submitting:
		return "submitting"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Client is the slice of the REST client the engine needs.
type Client interface {
	FetchState(ctx context.Context, matchID int) (*api.MatchState, error)
	SubmitSequence(ctx context.Context, matchID int, colores []string) (string, error)
}

// PollInterval is how often a running match re-fetches authoritative state.
const PollInterval = 3 * time.Second

// SubmitTimeout re-enables input if a submission gets no response. Without
// it a hung request would leave the board locked forever.
const SubmitTimeout = 15 * time.Second

// Engine drives one match. Exactly one Engine exists per viewed match, and
// it owns that match's poll session for its whole lifetime.
type Engine struct {
	matchID int
	client  Client
	sched   *poll.Scheduler

	// onChange is invoked (outside the lock) after every observable state
	// change, so the owning view can re-render.
	onChange func()

	pollEvery     time.Duration
	submitTimeout time.Duration

	mu         sync.Mutex
	state      State
	snap       *api.MatchState
	selection  []string
	mensaje    string
	flash      string // pending one-shot reveal color, "" when consumed
	flashNivel int    // last level a flash was emitted for
	submitSeq  int    // guards stale submit responses after a timeout
	sess       *poll.Session
	watchdog   *time.Timer
	closed     bool
}

// New builds an Engine for matchID. Call Start to load and begin polling.
func New(client Client, sched *poll.Scheduler, matchID int, onChange func()) *Engine {
	return &Engine{
		matchID:       matchID,
		client:        client,
		sched:         sched,
		onChange:      onChange,
		state:         AwaitingRound,
		flashNivel:    -1,
		pollEvery:     PollInterval,
		submitTimeout: SubmitTimeout,
	}
}

// Start performs the initial state load and begins polling. An initial-load
// failure is terminal: the caller should navigate away rather than retry.
func (e *Engine) Start(ctx context.Context) error {
	st, err := e.client.FetchState(ctx, e.matchID)
	if err != nil {
		klog.Errorf("engine: initial load of match %d failed: %v", e.matchID, err)
		return err
	}
	e.apply(st)

	e.mu.Lock()
	e.sess = e.sched.Start(poll.MatchKey(e.matchID), e.pollEvery, e.pollTick, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.state != Finished && !e.closed
	})
	e.mu.Unlock()
	return nil
}

// Close tears the engine down: cancels the poll session and the submit
// watchdog. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}
	sess := e.sess
	e.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (e *Engine) pollTick(ctx context.Context) error {
	st, err := e.client.FetchState(ctx, e.matchID)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		var nf *api.NotFoundError
		if errors.As(err, &nf) {
			// The match vanished mid-game; stop polling for good.
			e.mu.Lock()
			e.state = Finished
			e.mensaje = "La partida ya no existe"
			e.mu.Unlock()
			e.notify()
			return err
		}
		// Transient: surface a message, keep the loop alive.
		e.mu.Lock()
		e.mensaje = "Error de conexión, reintentando..."
		e.mu.Unlock()
		e.notify()
		return err
	}
	e.apply(st)
	return nil
}

// apply replaces the authoritative snapshot and re-derives the engine state.
func (e *Engine) apply(st *api.MatchState) {
	e.mu.Lock()
	if e.closed || e.state == Submitting {
		// Polls are paused while submitting, but an already-ticking fetch
		// may still land here; its result must not clobber the gate.
		e.mu.Unlock()
		return
	}

	prev := e.snap
	e.snap = st
	e.mensaje = st.Estado.Mensaje

	// One-shot reveal flash, at most once per level.
	if st.Juego.MostrarUltimoColor && st.Juego.UltimoColor != nil && st.Juego.NivelActual != e.flashNivel {
		e.flash = *st.Juego.UltimoColor
		e.flashNivel = st.Juego.NivelActual
	}

	switch {
	case st.Estado.JuegoTerminado:
		e.state = Finished
		e.selection = nil
	case st.Estado.EsMiTurno:
		if e.state != AccumulatingSelection {
			// A new turn begins with an empty selection.
			e.state = AccumulatingSelection
			e.selection = nil
		}
	default:
		e.state = AwaitingRound
		e.selection = nil
	}

	turnChanged := prev == nil || prev.Estado.EsMiTurno != st.Estado.EsMiTurno
	e.mu.Unlock()

	if turnChanged {
		klog.Infof("engine: match %d state applied, myTurn=%t finished=%t nivel=%d",
			e.matchID, st.Estado.EsMiTurno, st.Estado.JuegoTerminado, st.Juego.NivelActual)
	}
	e.notify()
}

// SelectColor records one tap. Outside the player's turn, after the game has
// finished, or while a submission is in flight it is a no-op. A wrong color
// clears the selection locally; only a complete correct sequence is ever
// sent to the backend.
func (e *Engine) SelectColor(color string) {
	e.mu.Lock()
	if e.closed || e.state != AccumulatingSelection || e.snap == nil {
		e.mu.Unlock()
		return
	}

	target := e.snap.Juego.Secuencia
	want := e.snap.Juego.NivelActual + 1
	if len(target) < want {
		want = len(target)
	}
	if want == 0 || len(e.selection) >= want {
		// Target not visible or already complete; never grow past the level.
		e.mu.Unlock()
		return
	}

	color = strings.ToLower(strings.TrimSpace(color))
	pos := len(e.selection)
	if !strings.EqualFold(target[pos], color) {
		e.selection = nil
		e.mensaje = "¡Secuencia incorrecta!"
		e.mu.Unlock()
		e.notify()
		return
	}

	e.selection = append(e.selection, color)
	if len(e.selection) < want {
		e.mu.Unlock()
		e.notify()
		return
	}

	// Full correct sequence: lock input and submit exactly once.
	e.state = Submitting
	e.submitSeq++
	seq := e.submitSeq
	colores := append([]string(nil), e.selection...)
	if e.sess != nil {
		e.sess.Pause()
	}
	e.watchdog = time.AfterFunc(e.submitTimeout, func() { e.submitTimedOut(seq) })
	e.mu.Unlock()
	e.notify()

	go e.submit(seq, colores)
}

func (e *Engine) submit(seq int, colores []string) {
	klog.Infof("engine: match %d submitting sequence of %d colors", e.matchID, len(colores))
	msg, err := e.client.SubmitSequence(context.Background(), e.matchID, colores)

	e.mu.Lock()
	if e.closed || seq != e.submitSeq || e.state != Submitting {
		// Timed out or torn down while in flight; discard the result.
		e.mu.Unlock()
		return
	}
	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}

	if err != nil {
		var conflict *api.ConflictError
		if errors.As(err, &conflict) {
			// Stale turn: our input was never valid, throw it away and let
			// the next poll re-derive whose move it is.
			klog.Infof("engine: match %d submit rejected: %s", e.matchID, conflict.Mensaje)
			e.selection = nil
			e.state = AwaitingRound
			e.mensaje = conflict.Mensaje
		} else {
			// Transient failure: keep the accumulated input so the player
			// can retry the final tap instead of re-entering everything.
			klog.Errorf("engine: match %d submit failed: %v", e.matchID, err)
			e.selection = e.selection[:len(e.selection)-1]
			e.state = AccumulatingSelection
			e.mensaje = "No se pudo enviar la secuencia, inténtalo de nuevo"
		}
		if e.sess != nil {
			e.sess.Resume()
		}
		e.mu.Unlock()
		e.notify()
		return
	}

	e.selection = nil
	e.state = AwaitingRound
	e.mensaje = msg
	sess := e.sess
	e.mu.Unlock()
	e.notify()

	// Round advanced: re-fetch immediately so the player is not left staring
	// at stale state until the next poll tick.
	st, err := e.client.FetchState(context.Background(), e.matchID)
	if err == nil {
		e.apply(st)
	} else {
		klog.Errorf("engine: match %d post-submit refresh failed: %v", e.matchID, err)
	}
	if sess != nil {
		sess.Resume()
	}
}

// submitTimedOut is the watchdog path: no response within SubmitTimeout.
func (e *Engine) submitTimedOut(seq int) {
	e.mu.Lock()
	if e.closed || seq != e.submitSeq || e.state != Submitting {
		e.mu.Unlock()
		return
	}
	klog.Errorf("engine: match %d submit timed out, re-enabling input", e.matchID)
	e.submitSeq++ // any late response is now stale
	e.watchdog = nil
	e.selection = nil
	e.state = AwaitingRound
	e.mensaje = "El envío tardó demasiado, vuelve a intentarlo"
	if e.sess != nil {
		e.sess.Resume()
	}
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the last authoritative match state, or nil before the
// first successful load.
func (e *Engine) Snapshot() *api.MatchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Selection returns a copy of the colors tapped so far this turn.
func (e *Engine) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selection...)
}

// Message returns the current status line for the player.
func (e *Engine) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mensaje
}

// IsMyTurn reports whether the local player should be tapping.
func (e *Engine) IsMyTurn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap != nil && e.snap.Estado.EsMiTurno && e.state == AccumulatingSelection
}

// Winner returns the winning participant id once the match has finished.
func (e *Engine) Winner() *int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil
	}
	return e.snap.Estado.Ganador
}

// TakeFlash consumes the pending reveal color, if any. The flash is
// observational only; it never participates in the prefix check.
func (e *Engine) TakeFlash() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flash == "" {
		return "", false
	}
	color := e.flash
	e.flash = ""
	return color, true
}
