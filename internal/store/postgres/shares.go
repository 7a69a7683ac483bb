package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// Shares is the repository for the document_shares table.
type Shares struct{ db *DB }

func (db *DB) Shares() *Shares { return &Shares{db: db} }

// Create inserts a new ShareGrant.
func (s *Shares) Create(ctx context.Context, g *model.ShareGrant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_shares (id, document_id, granter_id, grantee_email, access, token,
			max_uses, used_count, expiry, message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		g.ID, g.DocumentID, g.GranterID, g.GranteeEmail, g.Access, g.Token, g.MaxUses, g.UsedCount,
		g.Expiry, g.Message, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create share: %w", err)
	}
	return nil
}

// GetByToken fetches a grant by its single-use/bounded-use token.
func (s *Shares) GetByToken(ctx context.Context, token string) (*model.ShareGrant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, granter_id, grantee_email, access, token, max_uses, used_count, expiry, message, created_at
		FROM document_shares WHERE token = $1`, token)
	var m model.ShareGrant
	err := row.Scan(&m.ID, &m.DocumentID, &m.GranterID, &m.GranteeEmail, &m.Access, &m.Token,
		&m.MaxUses, &m.UsedCount, &m.Expiry, &m.Message, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get share by token: %w", err)
	}
	return &m, nil
}

// Consume increments used_count by one if the grant is not already
// exhausted, returning whether the consumption succeeded.
func (s *Shares) Consume(ctx context.Context, id idgen.ID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_shares SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses = 0 OR used_count < max_uses)`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: consume share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return n == 1, nil
}
