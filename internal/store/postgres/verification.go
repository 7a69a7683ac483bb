package postgres

import (
	"context"
	"fmt"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// VerificationEvents is the repository for the verification_events table
// (spec.md §3: append-only).
type VerificationEvents struct{ db *DB }

func (db *DB) VerificationEvents() *VerificationEvents { return &VerificationEvents{db: db} }

// Append inserts a new event; there is no update/delete path by design.
func (v *VerificationEvents) Append(ctx context.Context, e *model.VerificationEvent) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO verification_events (id, document_id, verifier_id, verified, method, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.DocumentID, e.VerifierID, e.Verified, e.Method, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append verification event: %w", err)
	}
	return nil
}

// ListByDocument returns every event for a document, newest first.
func (v *VerificationEvents) ListByDocument(ctx context.Context, documentID idgen.ID) ([]*model.VerificationEvent, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT id, document_id, verifier_id, verified, method, details, created_at
		FROM verification_events WHERE document_id = $1 ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list verification events: %w", err)
	}
	defer rows.Close()

	var out []*model.VerificationEvent
	for rows.Next() {
		var m model.VerificationEvent
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.VerifierID, &m.Verified, &m.Method, &m.Details, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan verification event: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
