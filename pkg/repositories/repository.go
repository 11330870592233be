package repositories

import (
	"context"

	"github.com/flxgame/gamesync/pkg/gamestate"
)

type Repository interface {
	Close(ctx context.Context) error
	// EnsureUser creates a user for the given external id if one does not
	// exist, otherwise returns the existing record unchanged.
	EnsureUser(ctx context.Context, externalID string, hints gamestate.ProfileHints) (*gamestate.User, error)
	GetUser(ctx context.Context, userID string) (*gamestate.User, error)
	// GetLatestGameState returns the authoritative snapshot for the user:
	// the most recent by created_at, ties broken by insertion order.
	GetLatestGameState(ctx context.Context, userID string) (*gamestate.GameState, error)
	CreateGameState(ctx context.Context, userID string, score, movesRemaining int64) (*gamestate.GameState, error)
	UpdateGameState(ctx context.Context, snapshotID string, score, movesRemaining int64) error
	UpdateUserPoints(ctx context.Context, userID string, points int64) error
}
