package sequencer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/flxgame/gamesync/pkg/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository is an in-memory Repository that tracks how many
// mutations are in flight per user so tests can catch overlapping
// read-modify-write cycles.
type fakeRepository struct {
	mu         sync.Mutex
	users      map[string]*gamestate.User
	states     map[string]*gamestate.GameState
	stateOwner map[string]string
	inFlight   map[string]int
	overlapped bool
	failWrites bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:      make(map[string]*gamestate.User),
		states:     make(map[string]*gamestate.GameState),
		stateOwner: make(map[string]string),
		inFlight:   make(map[string]int),
	}
}

func (f *fakeRepository) addUser(externalID string) *gamestate.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &gamestate.User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeRepository) enterWrite(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return &repositories.ErrStoreUnavailable{Err: fmt.Errorf("injected failure")}
	}
	f.inFlight[userID]++
	if f.inFlight[userID] > 1 {
		f.overlapped = true
	}
	return nil
}

func (f *fakeRepository) exitWrite(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight[userID]--
}

func (f *fakeRepository) Close(ctx context.Context) error { return nil }

func (f *fakeRepository) EnsureUser(ctx context.Context, externalID string, hints gamestate.ProfileHints) (*gamestate.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ExternalID == externalID {
			return user, nil
		}
	}
	user := &gamestate.User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Username:   hints.Username,
		FirstName:  hints.FirstName,
		LastName:   hints.LastName,
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeRepository) GetUser(ctx context.Context, userID string) (*gamestate.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, &repositories.ErrNotFound{}
	}
	copy := *user
	return &copy, nil
}

func (f *fakeRepository) GetLatestGameState(ctx context.Context, userID string) (*gamestate.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, owner := range f.stateOwner {
		if owner == userID {
			copy := *f.states[id]
			return &copy, nil
		}
	}
	return nil, &repositories.ErrNotFound{}
}

func (f *fakeRepository) CreateGameState(ctx context.Context, userID string, score, movesRemaining int64) (*gamestate.GameState, error) {
	if err := f.enterWrite(userID); err != nil {
		return nil, err
	}
	// hold the write open briefly so overlapping cycles collide
	time.Sleep(time.Millisecond)
	defer f.exitWrite(userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	state := &gamestate.GameState{
		ID:             uuid.NewString(),
		UserID:         userID,
		Score:          score,
		MovesRemaining: movesRemaining,
		CreatedAt:      time.Now(),
	}
	f.states[state.ID] = state
	f.stateOwner[state.ID] = userID
	return state, nil
}

func (f *fakeRepository) UpdateGameState(ctx context.Context, snapshotID string, score, movesRemaining int64) error {
	f.mu.Lock()
	state, ok := f.states[snapshotID]
	owner := f.stateOwner[snapshotID]
	f.mu.Unlock()
	if !ok {
		return &repositories.ErrNotFound{}
	}

	if err := f.enterWrite(owner); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	defer f.exitWrite(owner)

	f.mu.Lock()
	defer f.mu.Unlock()
	state.Score = score
	state.MovesRemaining = movesRemaining
	return nil
}

func (f *fakeRepository) UpdateUserPoints(ctx context.Context, userID string, points int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return &repositories.ErrNotFound{}
	}
	user.Points = points
	return nil
}

func (f *fakeRepository) snapshotCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, owner := range f.stateOwner {
		if owner == userID {
			count++
		}
	}
	return count
}

func int64Ptr(v int64) *int64 { return &v }

func TestSequencer_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("creates snapshot and derives points", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		state, err := s.Apply(ctx, user.ID, gamestate.Patch{
			Score:          int64Ptr(12345),
			MovesRemaining: int64Ptr(28),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12345), state.Score)
		assert.Equal(t, int64(28), state.MovesRemaining)

		stored, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Points)
	})

	t.Run("partial patch preserves other field", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, user.ID, gamestate.Patch{
			Score:          int64Ptr(12345),
			MovesRemaining: int64Ptr(28),
		})
		require.NoError(t, err)

		state, err := s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(25000)})
		require.NoError(t, err)
		assert.Equal(t, int64(25000), state.Score)
		assert.Equal(t, int64(28), state.MovesRemaining)

		stored, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Points)

		// in-session updates mutate the same snapshot, not a new row
		assert.Equal(t, 1, repo.snapshotCount(user.ID))
	})

	t.Run("unknown user fails and creates nothing", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, "nope", gamestate.Patch{Score: int64Ptr(100)})
		assert.True(t, repositories.IsNotFound(err))
		assert.Equal(t, 0, repo.snapshotCount("nope"))
	})

	t.Run("negative moves rejected before mutation", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, user.ID, gamestate.Patch{MovesRemaining: int64Ptr(-1)})
		assert.True(t, IsInvalidPatch(err))
		assert.Equal(t, 0, repo.snapshotCount(user.ID))
	})

	t.Run("negative score rejected", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(-10)})
		assert.True(t, IsInvalidPatch(err))
	})

	t.Run("store failure leaves prior snapshot intact", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(5000)})
		require.NoError(t, err)

		repo.failWrites = true
		_, err = s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(9000)})
		assert.True(t, repositories.IsStoreUnavailable(err))

		repo.failWrites = false
		state, err := s.LatestState(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), state.Score)
	})
}

func TestSequencer_ConcurrentApply(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	user := repo.addUser("100200300")
	s := NewSequencer(NewSequencerOptions{Repository: repo})

	const iterations = 25

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= iterations; i++ {
			_, err := s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(int64(i * 1000))})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 1; i <= iterations; i++ {
			_, err := s.Apply(ctx, user.ID, gamestate.Patch{MovesRemaining: int64Ptr(int64(30 - i%30))})
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	assert.False(t, repo.overlapped, "mutations for one user overlapped")

	// both streams' final values are present; neither clobbered the other
	state, err := s.LatestState(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(iterations*1000), state.Score)
	assert.Equal(t, int64(30-iterations%30), state.MovesRemaining)
	assert.Equal(t, 1, repo.snapshotCount(user.ID))
}

func TestSequencer_DistinctUsersDoNotBlock(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	a := repo.addUser("a")
	b := repo.addUser("b")
	s := NewSequencer(NewSequencerOptions{Repository: repo})

	var wg sync.WaitGroup
	for _, user := range []*gamestate.User{a, b} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := s.Apply(ctx, userID, gamestate.Patch{Score: int64Ptr(int64(i))})
				assert.NoError(t, err)
			}
		}(user.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, repo.snapshotCount(a.ID))
	assert.Equal(t, 1, repo.snapshotCount(b.ID))
}

func TestSequencer_RecomputePoints(t *testing.T) {
	ctx := context.Background()

	t.Run("derives from authoritative snapshot", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.Apply(ctx, user.ID, gamestate.Patch{Score: int64Ptr(43210)})
		require.NoError(t, err)

		points, err := s.RecomputePoints(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), points)
	})

	t.Run("no snapshot fails with not found", func(t *testing.T) {
		repo := newFakeRepository()
		user := repo.addUser("100200300")
		s := NewSequencer(NewSequencerOptions{Repository: repo})

		_, err := s.RecomputePoints(ctx, user.ID)
		assert.True(t, repositories.IsNotFound(err))
	})
}
