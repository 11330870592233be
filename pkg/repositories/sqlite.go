package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flxgame/gamesync/pkg/gamestate"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	dir, err := os.ReadDir(migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) EnsureUser(ctx context.Context, externalID string, hints gamestate.ProfileHints) (*gamestate.User, error) {
	q := `
	INSERT OR IGNORE INTO users (id, external_id, username, first_name, last_name)
	VALUES (?, ?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), externalID, hints.Username, hints.FirstName, hints.LastName); err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to upsert user: %v", err)}
	}

	q = `
	SELECT id, external_id, username, first_name, last_name, points
	FROM users WHERE external_id = ?;
	`
	user := &gamestate.User{}
	err := r.db.QueryRowContext(ctx, q, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.FirstName, &user.LastName, &user.Points)
	if err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan user: %v", err)}
	}

	return user, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID string) (*gamestate.User, error) {
	q := `
	SELECT id, external_id, username, first_name, last_name, points
	FROM users WHERE id = ?;
	`
	user := &gamestate.User{}
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.FirstName, &user.LastName, &user.Points)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan user: %v", err)}
	}

	return user, nil
}

func (r *SQLiteRepository) GetLatestGameState(ctx context.Context, userID string) (*gamestate.GameState, error) {
	q := `
	SELECT id, user_id, score, moves_remaining, created_at
	FROM game_states WHERE user_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT 1;
	`
	state := &gamestate.GameState{}
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&state.ID, &state.UserID, &state.Score, &state.MovesRemaining, &state.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan game state: %v", err)}
	}

	return state, nil
}

func (r *SQLiteRepository) CreateGameState(ctx context.Context, userID string, score, movesRemaining int64) (*gamestate.GameState, error) {
	id := uuid.NewString()
	q := `
	INSERT INTO game_states (id, user_id, score, moves_remaining)
	VALUES (?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, id, userID, score, movesRemaining); err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to insert game state: %v", err)}
	}

	q = `
	SELECT id, user_id, score, moves_remaining, created_at
	FROM game_states WHERE id = ?;
	`
	state := &gamestate.GameState{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&state.ID, &state.UserID, &state.Score, &state.MovesRemaining, &state.CreatedAt)
	if err != nil {
		return nil, &ErrStoreUnavailable{Err: fmt.Errorf("failed to scan game state: %v", err)}
	}

	return state, nil
}

func (r *SQLiteRepository) UpdateGameState(ctx context.Context, snapshotID string, score, movesRemaining int64) error {
	q := `
	UPDATE game_states SET score = ?, moves_remaining = ? WHERE id = ?;
	`
	result, err := r.db.ExecContext(ctx, q, score, movesRemaining, snapshotID)
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to update game state: %v", err)}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to read rows affected: %v", err)}
	}
	if affected == 0 {
		return &ErrNotFound{}
	}

	return nil
}

func (r *SQLiteRepository) UpdateUserPoints(ctx context.Context, userID string, points int64) error {
	q := `
	UPDATE users SET points = ? WHERE id = ?;
	`
	result, err := r.db.ExecContext(ctx, q, points, userID)
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to update points: %v", err)}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &ErrStoreUnavailable{Err: fmt.Errorf("failed to read rows affected: %v", err)}
	}
	if affected == 0 {
		return &ErrNotFound{}
	}

	return nil
}
