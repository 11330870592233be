package sequencer

import (
	"context"
	"sync"

	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/flxgame/gamesync/pkg/log"
	"github.com/flxgame/gamesync/pkg/repositories"
)

// Sequencer serializes snapshot mutations per user. Overlapping Apply
// calls for the same user run one at a time so a read-modify-write cycle
// never discards another call's fields; calls for different users do not
// block each other.
type Sequencer struct {
	repository repositories.Repository
	mu         sync.Mutex
	userLocks  map[string]*sync.Mutex
}

type NewSequencerOptions struct {
	Repository repositories.Repository
}

func NewSequencer(opts NewSequencerOptions) *Sequencer {
	return &Sequencer{
		repository: opts.Repository,
		userLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *Sequencer) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// Apply merges the patch into the user's authoritative snapshot and
// persists it. An existing user with no snapshot gets one with zero
// defaults; an unknown user fails with ErrNotFound and nothing is
// created. Points are recomputed in the same critical section whenever
// the score changed.
func (s *Sequencer) Apply(ctx context.Context, userID string, patch gamestate.Patch) (*gamestate.GameState, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.repository.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	prev, err := s.repository.GetLatestGameState(ctx, userID)
	if err != nil && !repositories.IsNotFound(err) {
		return nil, err
	}

	var prevScore, prevMoves int64
	if prev != nil {
		prevScore = prev.Score
		prevMoves = prev.MovesRemaining
	}

	score, moves := prevScore, prevMoves
	if patch.Score != nil {
		score = *patch.Score
	}
	if patch.MovesRemaining != nil {
		moves = *patch.MovesRemaining
	}

	var state *gamestate.GameState
	if prev == nil {
		state, err = s.repository.CreateGameState(ctx, userID, score, moves)
		if err != nil {
			return nil, err
		}
		log.Debug("Created snapshot %s for user %s", state.ID, userID)
	} else {
		if err := s.repository.UpdateGameState(ctx, prev.ID, score, moves); err != nil {
			return nil, err
		}
		state = prev
		state.Score = score
		state.MovesRemaining = moves
	}

	if score != prevScore {
		if err := s.repository.UpdateUserPoints(ctx, userID, gamestate.Points(score)); err != nil {
			return nil, err
		}
	}

	return state, nil
}

// RecomputePoints re-derives the user's points from the authoritative
// snapshot, under the same per-user critical section as Apply.
func (s *Sequencer) RecomputePoints(ctx context.Context, userID string) (int64, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.repository.GetUser(ctx, userID); err != nil {
		return 0, err
	}

	state, err := s.repository.GetLatestGameState(ctx, userID)
	if err != nil {
		return 0, err
	}

	points := gamestate.Points(state.Score)
	if err := s.repository.UpdateUserPoints(ctx, userID, points); err != nil {
		return 0, err
	}

	return points, nil
}

// LatestState returns the user's authoritative snapshot. Reads are not
// serialized against writes; the store returns committed rows only.
func (s *Sequencer) LatestState(ctx context.Context, userID string) (*gamestate.GameState, error) {
	return s.repository.GetLatestGameState(ctx, userID)
}

func validatePatch(patch gamestate.Patch) error {
	if patch.Score != nil && *patch.Score < 0 {
		return &ErrInvalidPatch{Reason: "score must not be negative"}
	}
	if patch.MovesRemaining != nil && *patch.MovesRemaining < 0 {
		return &ErrInvalidPatch{Reason: "movesRemaining must not be negative"}
	}
	return nil
}
