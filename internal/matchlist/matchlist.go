// Package matchlist keeps the joinable-match listing fresh. Each refresh
// replaces the list wholesale — entries carry no local state, so diffing
// would only add ways to drift from the backend.
package matchlist

import (
	"context"
	"sync"
	"time"

	"github.com/simonduel/SimonDuel/internal/api"
	"github.com/simonduel/SimonDuel/internal/poll"
	"k8s.io/klog/v2"
)

// Client is the slice of the REST client the listing needs.
type Client interface {
	FetchMatchList(ctx context.Context) ([]api.Match, error)
	JoinMatch(ctx context.Context, match api.Match) (*api.JoinResult, error)
}

// RefreshInterval is how often the open-match list is refetched.
const RefreshInterval = 5 * time.Second

// sessionKey names the single list-refresh poll session.
const sessionKey = "partidas-index"

// Synchronizer periodically refetches the open matches.
type Synchronizer struct {
	client   Client
	sched    *poll.Scheduler
	onChange func()

	refreshEvery time.Duration

	mu      sync.Mutex
	matches []api.Match
	sess    *poll.Session
	closed  bool
}

// New builds a Synchronizer. Call Start to load and begin refreshing.
func New(client Client, sched *poll.Scheduler, onChange func()) *Synchronizer {
	return &Synchronizer{
		client:       client,
		sched:        sched,
		onChange:     onChange,
		refreshEvery: RefreshInterval,
	}
}

// Start fetches the list once and begins the periodic refresh. An initial
// fetch failure is not terminal here: the screen simply shows an empty list
// until a later tick succeeds.
func (s *Synchronizer) Start(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		klog.Errorf("matchlist: initial fetch failed: %v", err)
	}

	s.mu.Lock()
	s.sess = s.sched.Start(sessionKey, s.refreshEvery, s.refresh, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.closed
	})
	s.mu.Unlock()
}

func (s *Synchronizer) refresh(ctx context.Context) error {
	matches, err := s.client.FetchMatchList(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.matches = matches
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange()
	}
	return nil
}

// Matches returns a copy of the current listing.
func (s *Synchronizer) Matches() []api.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Match(nil), s.matches...)
}

// Join stops the refresh session, then joins the match. The session must be
// dead before the join so a stray refresh can never race the navigation that
// follows. If the join fails the refresh is restarted and the error returned.
func (s *Synchronizer) Join(ctx context.Context, match api.Match) (*api.JoinResult, error) {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess != nil {
		sess.Stop()
		<-sess.Done()
	}

	res, err := s.client.JoinMatch(ctx, match)
	if err != nil {
		klog.Errorf("matchlist: join of match %d failed: %v", match.ID, err)
		s.mu.Lock()
		if !s.closed {
			s.sess = s.sched.Start(sessionKey, s.refreshEvery, s.refresh, func() bool {
				s.mu.Lock()
				defer s.mu.Unlock()
				return !s.closed
			})
		}
		s.mu.Unlock()
		return nil, err
	}
	klog.Infof("matchlist: joined match %d as player %d", res.Partida.ID, res.JugadorNumero)
	return res, nil
}

// Close stops the refresh session. Idempotent.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	sess := s.sess
	s.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}
