package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser records a login: "get or create" by Spotify id, refreshing profile fields.
func (r *UserRepository) UpsertUser(ctx context.Context, identity models.Identity, at time.Time) (*models.User, error) {
	var user models.User
	query := `INSERT INTO users (spotify_id, email, display_name, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (spotify_id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, last_login_at = EXCLUDED.last_login_at
		RETURNING id, spotify_id, email, display_name, created_at, last_login_at`
	err := r.db.QueryRowContext(ctx, query, identity.SubjectID, identity.Email, identity.DisplayName, at).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetUserBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	var user models.User
	query := `SELECT id, spotify_id, email, display_name, created_at, last_login_at FROM users WHERE spotify_id = $1`
	err := r.db.QueryRowContext(ctx, query, spotifyID).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by spotify id: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	query := `SELECT id, spotify_id, email, display_name, created_at, last_login_at FROM users ORDER BY last_login_at DESC, id DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, limit)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.SpotifyID,
			&user.Email,
			&user.DisplayName,
			&user.CreatedAt,
			&user.LastLoginAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
