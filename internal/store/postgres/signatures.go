package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// Signatures is the repository for the signatures table.
type Signatures struct{ db *DB }

func (db *DB) Signatures() *Signatures { return &Signatures{db: db} }

// ErrDuplicate is returned when (document_id, signer_id) already exists
// (spec.md §8 invariant #2, enforced by a UNIQUE constraint).
var ErrDuplicate = errors.New("postgres: duplicate signature for (document_id, signer_id)")

// Create inserts a Signature row within tx (the caller holds the document
// row lock — spec.md §4.6 concurrency rule).
func (s *Signatures) Create(ctx context.Context, tx *sql.Tx, sig *model.Signature) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO signatures (id, document_id, signer_id, type, payload, signer_hash,
			verification_method, verified, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sig.ID, sig.DocumentID, sig.SignerID, sig.Type, sig.Payload, sig.SignerHash,
		sig.VerificationMethod, sig.Verified, sig.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("postgres: create signature: %w", err)
	}
	return nil
}

// SetLedgerTx records the ledger transaction id once record_signature
// confirms.
func (s *Signatures) SetLedgerTx(ctx context.Context, id idgen.ID, txID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE signatures SET ledger_tx_id = $2 WHERE id = $1`, id, txID)
	if err != nil {
		return fmt.Errorf("postgres: set signature ledger tx: %w", err)
	}
	return nil
}

// ListByDocument returns every signature for a document, newest first.
func (s *Signatures) ListByDocument(ctx context.Context, documentID idgen.ID) ([]*model.Signature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, signer_id, type, payload, signer_hash, verification_method,
			verified, ledger_tx_id, created_at
		FROM signatures WHERE document_id = $1 ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signatures: %w", err)
	}
	defer rows.Close()

	var out []*model.Signature
	for rows.Next() {
		var m model.Signature
		var ledgerTx sql.NullString
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.SignerID, &m.Type, &m.Payload, &m.SignerHash,
			&m.VerificationMethod, &m.Verified, &ledgerTx, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan signature: %w", err)
		}
		if ledgerTx.Valid {
			m.LedgerTxID = ledgerTx.String
			m.HasLedgerTx = true
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CountValid returns the count of signatures for a document within tx
// (used to compute the next state — spec.md §3).
func (s *Signatures) CountValid(ctx context.Context, tx *sql.Tx, documentID idgen.ID) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM signatures WHERE document_id = $1 AND verified`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count valid signatures: %w", err)
	}
	return n, nil
}

// Get fetches a signature by id.
func (s *Signatures) Get(ctx context.Context, id idgen.ID) (*model.Signature, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, signer_id, type, payload, signer_hash, verification_method,
			verified, ledger_tx_id, created_at
		FROM signatures WHERE id = $1`, id)
	var m model.Signature
	var ledgerTx sql.NullString
	err := row.Scan(&m.ID, &m.DocumentID, &m.SignerID, &m.Type, &m.Payload, &m.SignerHash,
		&m.VerificationMethod, &m.Verified, &ledgerTx, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get signature: %w", err)
	}
	if ledgerTx.Valid {
		m.LedgerTxID = ledgerTx.String
		m.HasLedgerTx = true
	}
	return &m, nil
}
