package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flxgame/gamesync/client/coalescer"
	"github.com/flxgame/gamesync/client/network"
	"github.com/flxgame/gamesync/client/poller"
	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/flxgame/gamesync/pkg/log"
)

// Session owns a player's client-side sync state: the local score and
// moves values, the coalescer that debounces outbound updates, and the
// poller that reconciles against the server. All timers live inside the
// session and die with it.
type Session struct {
	client *network.Client

	mu    sync.Mutex
	user  *gamestate.User
	score int64
	moves int64

	coalescer *coalescer.Coalescer
	poller    *poller.Poller
	onError   func(err error)

	started bool
	closed  bool
}

type NewSessionOptions struct {
	Client         *network.Client
	DebounceWindow time.Duration
	PollInterval   time.Duration
	// OnError observes flush and poll failures; the session keeps running
	OnError func(err error)
}

func NewSession(opts NewSessionOptions) *Session {
	onError := opts.OnError
	if onError == nil {
		onError = func(err error) {
			log.Warn("Sync error: %v", err)
		}
	}

	s := &Session{
		client:  opts.Client,
		onError: onError,
	}

	s.coalescer = coalescer.NewCoalescer(coalescer.NewCoalescerOptions{
		Window: opts.DebounceWindow,
		Flush:  s.flush,
		OnError: func(field coalescer.Field, err error) {
			onError(fmt.Errorf("failed to flush %s: %v", field, err))
		},
	})
	s.poller = poller.NewPoller(poller.NewPollerOptions{
		Interval:   opts.PollInterval,
		Fetch:      s.fetch,
		OnSnapshot: s.reconcile,
		OnError: func(err error) {
			onError(fmt.Errorf("poll failed: %v", err))
		},
	})

	return s
}

// Start resolves the user's identity and begins polling. Identity
// resolution happens exactly once per session, before any update.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	user, err := s.client.EnsureUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %v", err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	log.Info("Session started for user %s", user.ID)

	s.poller.Start(ctx)
	return nil
}

// SetScore records a local score change and schedules a debounced flush.
func (s *Session) SetScore(score int64) {
	s.mu.Lock()
	s.score = score
	s.mu.Unlock()
	s.coalescer.Set(coalescer.FieldScore, score)
}

// SetMoves records a local moves change and schedules a debounced flush.
func (s *Session) SetMoves(moves int64) {
	s.mu.Lock()
	s.moves = moves
	s.mu.Unlock()
	s.coalescer.Set(coalescer.FieldMoves, moves)
}

// Snapshot returns the current local values.
func (s *Session) Snapshot() (score, moves int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.moves
}

// User returns the resolved user, or nil before Start completes.
func (s *Session) User() *gamestate.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Close tears the session down. No flush or poll callback runs after
// Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.coalescer.Stop()
	s.poller.Stop()
	log.Debug("Session closed")
}

func (s *Session) flush(ctx context.Context, field coalescer.Field, value int64) error {
	patch := gamestate.Patch{}
	switch field {
	case coalescer.FieldScore:
		patch.Score = &value
	case coalescer.FieldMoves:
		patch.MovesRemaining = &value
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	_, err := s.client.ApplyPatch(ctx, patch)
	return err
}

func (s *Session) fetch(ctx context.Context) (*gamestate.GameState, error) {
	state, err := s.client.LatestState(ctx)
	if err != nil {
		if network.IsStateNotFound(err) {
			// no snapshot yet; nothing to reconcile
			return &gamestate.GameState{}, nil
		}
		return nil, err
	}
	return state, nil
}

// reconcile folds a fetched snapshot into local state. A pending local
// edit wins over the fetched value for its field; at rest the server is
// authoritative.
func (s *Session) reconcile(state *gamestate.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if !s.coalescer.Pending(coalescer.FieldScore) {
		s.score = state.Score
	}
	if !s.coalescer.Pending(coalescer.FieldMoves) {
		s.moves = state.MovesRemaining
	}
}
