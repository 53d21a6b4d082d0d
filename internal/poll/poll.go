// Package poll provides the periodic-fetch primitive shared by the waiting
// room, the turn engine and the match list. There is no push channel to the
// backend, so every live screen owns exactly one named poll session here.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// MatchKey names the poll session owned by a match id. The waiting room and
// the turn engine share this key, so moving from lobby to board replaces
// (never duplicates) the match's poll session.
func MatchKey(matchID int) string {
	return fmt.Sprintf("partida-%d", matchID)
}

// Action is one poll tick. The context is the session's context: when the
// session is cancelled mid-request the action must abandon its result.
type Action func(ctx context.Context) error

// Scheduler runs named poll sessions. Sessions are keyed (by match id in
// practice) and at most one session is live per key: starting a new session
// under a key cancels the previous one first.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[string]*Session

	// ErrSink, if set, receives per-tick action failures. A failing tick
	// never kills the session; the next tick retries.
	ErrSink func(key string, err error)
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{sessions: make(map[string]*Session)}
}

// Session is one live polling loop. Ticks are strictly sequential: the
// action runs synchronously inside the loop, so a slow response can never
// race a later tick. Missed ticks are dropped, not queued.
type Session struct {
	ID  string
	Key string

	sched          *Scheduler
	interval       time.Duration
	action         Action
	shouldContinue func() bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	mu     sync.Mutex
	paused bool
}

// Start launches a session for key, cancelling any prior session under the
// same key. The first action run happens one full interval after Start.
// If shouldContinue returns false before a tick, the session self-cancels
// without the caller having to remember to stop it.
func (s *Scheduler) Start(key string, interval time.Duration, action Action, shouldContinue func() bool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:             uuid.NewString(),
		Key:            key,
		sched:          s,
		interval:       interval,
		action:         action,
		shouldContinue: shouldContinue,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.sessions[key]
	s.sessions[key] = sess
	s.mu.Unlock()

	if prev != nil {
		klog.Infof("poll: replacing session %s for %q", prev.ID, key)
		prev.Stop()
	}

	klog.Infof("poll: session %s started for %q every %v", sess.ID, key, interval)
	go sess.loop()
	return sess
}

// Cancel stops the session for key, if any. Idempotent: cancelling an
// unknown or already-terminated key is a no-op.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	sess := s.sessions[key]
	s.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

// Active reports whether a session is currently live for key.
func (s *Scheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[key] != nil
}

// release drops sess from the map unless it was already replaced.
func (s *Scheduler) release(sess *Session) {
	s.mu.Lock()
	if s.sessions[sess.Key] == sess {
		delete(s.sessions, sess.Key)
	}
	s.mu.Unlock()
}

func (sess *Session) loop() {
	defer func() {
		sess.sched.release(sess)
		close(sess.done)
		klog.Infof("poll: session %s for %q terminated", sess.ID, sess.Key)
	}()

	ticker := time.NewTicker(sess.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.isPaused() {
			continue
		}
		if sess.shouldContinue != nil && !sess.shouldContinue() {
			sess.Stop()
			return
		}

		if err := sess.action(sess.ctx); err != nil {
			if sess.ctx.Err() != nil {
				// Cancelled mid-request; discard.
				return
			}
			klog.Errorf("poll: session %s for %q tick failed: %v", sess.ID, sess.Key, err)
			if sink := sess.sched.ErrSink; sink != nil {
				sink(sess.Key, err)
			}
		}
	}
}

// Stop cancels the session. Idempotent; safe to call after self-termination.
func (sess *Session) Stop() {
	sess.stopOnce.Do(sess.cancel)
}

// Done is closed once the loop has fully exited.
func (sess *Session) Done() <-chan struct{} { return sess.done }

// Pause suspends ticks without tearing the session down. Used while a move
// submission is in flight so a poll can never race the submit.
func (sess *Session) Pause() {
	sess.mu.Lock()
	sess.paused = true
	sess.mu.Unlock()
}

// Resume re-enables ticks after a Pause.
func (sess *Session) Resume() {
	sess.mu.Lock()
	sess.paused = false
	sess.mu.Unlock()
}

func (sess *Session) isPaused() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.paused
}
