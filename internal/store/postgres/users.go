package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// ErrNotFound is returned by every repository Get when no row matches.
var ErrNotFound = errors.New("postgres: not found")

// Users is the repository for the users table.
type Users struct{ db *DB }

func (db *DB) Users() *Users { return &Users{db: db} }

// Create inserts a new user row. Email must already be normalized
// (model.NormalizeEmail) by the caller.
func (u *Users) Create(ctx context.Context, user *model.User) error {
	_, err := u.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, is_verified, is_revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.IsVerified, user.IsRevoked, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

func (u *Users) scan(row *sql.Row) (*model.User, error) {
	var m model.User
	err := row.Scan(&m.ID, &m.Email, &m.DisplayName, &m.PasswordHash, &m.IsVerified, &m.IsRevoked, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &m, nil
}

// GetByID fetches a user by ID, including soft-revoked users (callers
// check IsRevoked; spec.md §3 — "never hard-deleted").
func (u *Users) GetByID(ctx context.Context, id idgen.ID) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, is_verified, is_revoked, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return u.scan(row)
}

// GetByEmail fetches by normalized, case-insensitive email.
func (u *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, is_verified, is_revoked, created_at, updated_at
		FROM users WHERE email = $1`, model.NormalizeEmail(email))
	return u.scan(row)
}

// Touch updates updated_at, used after any mutation made elsewhere (e.g.
// identity subsystem password/refresh rotation).
func (u *Users) Touch(ctx context.Context, id idgen.ID, at time.Time) error {
	_, err := u.db.ExecContext(ctx, `UPDATE users SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: touch user: %w", err)
	}
	return nil
}
