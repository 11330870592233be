package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	authproviders "github.com/flxgame/gamesync/pkg/auth/providers"
	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthProvider struct {
	claims *authproviders.TokenClaims
	err    error
}

func (f *fakeAuthProvider) VerifyToken(ctx context.Context, token string) (*authproviders.TokenClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeUserRepository struct {
	users map[string]*gamestate.User
	calls int
}

func (f *fakeUserRepository) EnsureUser(ctx context.Context, externalID string, hints gamestate.ProfileHints) (*gamestate.User, error) {
	f.calls++
	if user, ok := f.users[externalID]; ok {
		return user, nil
	}
	user := &gamestate.User{
		ID:         "internal-" + externalID,
		ExternalID: externalID,
		Username:   hints.Username,
	}
	f.users[externalID] = user
	return user, nil
}

func (f *fakeUserRepository) Close(ctx context.Context) error { return nil }

func (f *fakeUserRepository) GetUser(ctx context.Context, userID string) (*gamestate.User, error) {
	return nil, nil
}

func (f *fakeUserRepository) GetLatestGameState(ctx context.Context, userID string) (*gamestate.GameState, error) {
	return nil, nil
}

func (f *fakeUserRepository) CreateGameState(ctx context.Context, userID string, score, movesRemaining int64) (*gamestate.GameState, error) {
	return nil, nil
}

func (f *fakeUserRepository) UpdateGameState(ctx context.Context, snapshotID string, score, movesRemaining int64) error {
	return nil
}

func (f *fakeUserRepository) UpdateUserPoints(ctx context.Context, userID string, points int64) error {
	return nil
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("resolves the token to a user in context", func(t *testing.T) {
		provider := &fakeAuthProvider{claims: &authproviders.TokenClaims{UID: "42", Username: "player"}}
		repo := &fakeUserRepository{users: make(map[string]*gamestate.User)}
		middleware := NewAuthMiddleware(provider, repo)

		var got *gamestate.User
		handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = r.Context().Value(UserContextKey).(*gamestate.User)
		}))

		req := httptest.NewRequest(http.MethodGet, "/gamestate", nil)
		req.Header.Set("Authorization", "Bearer some-init-data")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got)
		assert.Equal(t, "42", got.ExternalID)
		assert.Equal(t, "player", got.Username)
	})

	t.Run("repeated requests resolve to the same user", func(t *testing.T) {
		provider := &fakeAuthProvider{claims: &authproviders.TokenClaims{UID: "42"}}
		repo := &fakeUserRepository{users: make(map[string]*gamestate.User)}
		middleware := NewAuthMiddleware(provider, repo)

		var ids []string
		handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Context().Value(UserContextKey).(*gamestate.User)
			ids = append(ids, user.ID)
		}))

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/gamestate", nil)
			req.Header.Set("Authorization", "Bearer some-init-data")
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		require.Len(t, ids, 3)
		assert.Equal(t, ids[0], ids[1])
		assert.Equal(t, ids[0], ids[2])
		assert.Equal(t, 3, repo.calls)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		provider := &fakeAuthProvider{claims: &authproviders.TokenClaims{UID: "42"}}
		repo := &fakeUserRepository{users: make(map[string]*gamestate.User)}
		middleware := NewAuthMiddleware(provider, repo)

		called := false
		handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gamestate", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		provider := &fakeAuthProvider{err: &authproviders.ErrInvalidIdentity{Reason: "hash mismatch"}}
		repo := &fakeUserRepository{users: make(map[string]*gamestate.User)}
		middleware := NewAuthMiddleware(provider, repo)

		called := false
		handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodGet, "/gamestate", nil)
		req.Header.Set("Authorization", "Bearer tampered")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
		assert.Equal(t, 0, repo.calls)
	})
}
