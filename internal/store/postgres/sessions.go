package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// RefreshSessions is the repository for the refresh_sessions table.
type RefreshSessions struct{ db *DB }

func (db *DB) RefreshSessions() *RefreshSessions { return &RefreshSessions{db: db} }

// Create inserts the first or next link of a refresh-token rotation chain.
func (r *RefreshSessions) Create(ctx context.Context, s *model.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (id, user_id, family_id, token_hash, consumed, revoked, expiry, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.UserID, s.FamilyID, s.TokenHash, s.Consumed, s.Revoked, s.Expiry, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create refresh session: %w", err)
	}
	return nil
}

// GetByTokenHash looks a session up by the hash of the presented refresh
// token (raw tokens are never stored, only their hash).
func (r *RefreshSessions) GetByTokenHash(ctx context.Context, hash []byte) (*model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, family_id, token_hash, consumed, revoked, expiry, created_at
		FROM refresh_sessions WHERE token_hash = $1`, hash)
	var m model.RefreshSession
	err := row.Scan(&m.ID, &m.UserID, &m.FamilyID, &m.TokenHash, &m.Consumed, &m.Revoked, &m.Expiry, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get refresh session: %w", err)
	}
	return &m, nil
}

// MarkConsumed flips a session to consumed, the rotation step on a valid
// refresh. Returns false if it was already consumed or revoked by a
// concurrent caller (the reuse race spec.md §4.1 calls out).
func (r *RefreshSessions) MarkConsumed(ctx context.Context, id idgen.ID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET consumed = true WHERE id = $1 AND consumed = false AND revoked = false`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: mark refresh session consumed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return n == 1, nil
}

// RevokeFamily revokes every session sharing familyID, the response to
// detecting reuse of an already-consumed refresh token.
func (r *RefreshSessions) RevokeFamily(ctx context.Context, familyID idgen.ID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked = true WHERE family_id = $1`, familyID)
	if err != nil {
		return fmt.Errorf("postgres: revoke refresh family: %w", err)
	}
	return nil
}
