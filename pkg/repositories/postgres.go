package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database, applies pending
// migrations and returns a ready repository. The caller is responsible
// for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrationsDir string) (Repository, error) {
	if err := migrateUp(connStr, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func migrateUp(connStr string, migrationsDir string) error {
	// golang-migrate's pgx/v5 driver registers the pgx5 scheme
	migrateURL := strings.Replace(connStr, "postgresql://", "pgx5://", 1)
	migrateURL = strings.Replace(migrateURL, "postgres://", "pgx5://", 1)

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsDir), migrateURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %v", err)
	}

	return nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) EnsureUser(ctx context.Context, externalID string, hints gamestate.ProfileHints) (*gamestate.User, error) {
	q := `
	INSERT INTO users (id, external_id, username, first_name, last_name)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (external_id) DO NOTHING;
	`
	if _, err := r.pool.Exec(ctx, q, uuid.NewString(), externalID, hints.Username, hints.FirstName, hints.LastName); err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to upsert user: %v", err)}
	}

	q = `
	SELECT id, external_id, username, first_name, last_name, points
	FROM users WHERE external_id = $1;
	`
	user := &gamestate.User{}
	err := r.pool.QueryRow(ctx, q, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.FirstName, &user.LastName, &user.Points)
	if err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan user: %v", err)}
	}

	return user, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*gamestate.User, error) {
	q := `
	SELECT id, external_id, username, first_name, last_name, points
	FROM users WHERE id = $1;
	`
	user := &gamestate.User{}
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.FirstName, &user.LastName, &user.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan user: %v", err)}
	}

	return user, nil
}

func (r *PostgresRepository) GetLatestGameState(ctx context.Context, userID string) (*gamestate.GameState, error) {
	q := `
	SELECT id, user_id, score, moves_remaining, created_at
	FROM game_states WHERE user_id = $1
	ORDER BY created_at DESC, seq DESC
	LIMIT 1;
	`
	state := &gamestate.GameState{}
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&state.ID, &state.UserID, &state.Score, &state.MovesRemaining, &state.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan game state: %v", err)}
	}

	return state, nil
}

func (r *PostgresRepository) CreateGameState(ctx context.Context, userID string, score, movesRemaining int64) (*gamestate.GameState, error) {
	q := `
	INSERT INTO game_states (id, user_id, score, moves_remaining)
	VALUES ($1, $2, $3, $4)
	RETURNING id, user_id, score, moves_remaining, created_at;
	`
	state := &gamestate.GameState{}
	err := r.pool.QueryRow(ctx, q, uuid.NewString(), userID, score, movesRemaining).Scan(
		&state.ID, &state.UserID, &state.Score, &state.MovesRemaining, &state.CreatedAt)
	if err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to insert game state: %v", err)}
	}

	return state, nil
}

func (r *PostgresRepository) UpdateGameState(ctx context.Context, snapshotID string, score, movesRemaining int64) error {
	q := `
	UPDATE game_states SET score = $2, moves_remaining = $3 WHERE id = $1;
	`
	tag, err := r.pool.Exec(ctx, q, snapshotID, score, movesRemaining)
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to update game state: %v", err)}
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{}
	}

	return nil
}

func (r *PostgresRepository) UpdateUserPoints(ctx context.Context, userID string, points int64) error {
	q := `
	UPDATE users SET points = $2 WHERE id = $1;
	`
	tag, err := r.pool.Exec(ctx, q, userID, points)
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to update points: %v", err)}
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{}
	}

	return nil
}
