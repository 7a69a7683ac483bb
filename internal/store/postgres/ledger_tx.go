package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// LedgerTransactions is the repository for the ledger_transactions table.
type LedgerTransactions struct{ db *DB }

func (db *DB) LedgerTransactions() *LedgerTransactions { return &LedgerTransactions{db: db} }

// ErrDuplicateDedupKey signals a retried submit with the same dedup key
// (spec.md §4.2 idempotency contract).
var ErrDuplicateDedupKey = errors.New("postgres: ledger transaction with this dedup key already exists")

// Create inserts a new LedgerTransaction row, returning ErrDuplicateDedupKey
// if DedupKey already exists (the caller should then look the existing
// record up by dedup key and return it instead of treating this as an
// error — spec.md §4.2, §8 invariant #5).
func (l *LedgerTransactions) Create(ctx context.Context, t *model.LedgerTransaction) error {
	endorsements, err := json.Marshal(t.Endorsements)
	if err != nil {
		return fmt.Errorf("postgres: marshal endorsements: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO ledger_transactions (tx_id, document_id, kind, block, block_hash, payload_hash,
			endorsements, dedup_key, submitted_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.TxID, t.DocumentID, t.Kind, nullableBlock(t.Block), nullableString(t.BlockHash), t.PayloadHash,
		endorsements, t.DedupKey, t.SubmittedAt, t.Status)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicateDedupKey
	}
	if err != nil {
		return fmt.Errorf("postgres: create ledger transaction: %w", err)
	}
	return nil
}

func nullableBlock(b int64) sql.NullInt64 {
	if b == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: b, Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (l *LedgerTransactions) scan(row *sql.Row) (*model.LedgerTransaction, error) {
	var m model.LedgerTransaction
	var block sql.NullInt64
	var blockHash sql.NullString
	var endorsements []byte
	var confirmedAt sql.NullTime
	err := row.Scan(&m.TxID, &m.DocumentID, &m.Kind, &block, &blockHash, &m.PayloadHash,
		&endorsements, &m.DedupKey, &m.SubmittedAt, &confirmedAt, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ledger transaction: %w", err)
	}
	if block.Valid {
		m.Block = block.Int64
	}
	if blockHash.Valid {
		m.BlockHash = blockHash.String
	}
	if confirmedAt.Valid {
		m.ConfirmedAt = confirmedAt.Time
		m.HasConfirmed = true
	}
	if len(endorsements) > 0 {
		_ = json.Unmarshal(endorsements, &m.Endorsements)
	}
	return &m, nil
}

const ledgerTxSelect = `SELECT tx_id, document_id, kind, block, block_hash, payload_hash,
	endorsements, dedup_key, submitted_at, confirmed_at, status FROM ledger_transactions`

// GetByDedupKey supports the idempotency contract: a retried submit looks
// its prior record up by dedup key instead of inserting a second one.
func (l *LedgerTransactions) GetByDedupKey(ctx context.Context, dedupKey string) (*model.LedgerTransaction, error) {
	row := l.db.QueryRowContext(ctx, ledgerTxSelect+` WHERE dedup_key = $1`, dedupKey)
	return l.scan(row)
}

// GetByTxID fetches a single transaction (`GET /ledger/tx/{tx_id}`).
func (l *LedgerTransactions) GetByTxID(ctx context.Context, txID string) (*model.LedgerTransaction, error) {
	row := l.db.QueryRowContext(ctx, ledgerTxSelect+` WHERE tx_id = $1`, txID)
	return l.scan(row)
}

// Latest returns the most recent transaction for a document
// (`GET /ledger/history/{document_id}` uses History for the full list;
// query() in spec.md §4.2 uses this for the authoritative current record).
func (l *LedgerTransactions) Latest(ctx context.Context, documentID idgen.ID) (*model.LedgerTransaction, error) {
	row := l.db.QueryRowContext(ctx, ledgerTxSelect+` WHERE document_id = $1 ORDER BY submitted_at DESC LIMIT 1`, documentID)
	return l.scan(row)
}

// History returns every ledger record for a document, oldest first
// (spec.md §4.2 `history`).
func (l *LedgerTransactions) History(ctx context.Context, documentID idgen.ID) ([]*model.LedgerTransaction, error) {
	rows, err := l.db.QueryContext(ctx, ledgerTxSelect+` WHERE document_id = $1 ORDER BY submitted_at ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: history: %w", err)
	}
	defer rows.Close()

	var out []*model.LedgerTransaction
	for rows.Next() {
		var m model.LedgerTransaction
		var block sql.NullInt64
		var blockHash sql.NullString
		var endorsements []byte
		var confirmedAt sql.NullTime
		if err := rows.Scan(&m.TxID, &m.DocumentID, &m.Kind, &block, &blockHash, &m.PayloadHash,
			&endorsements, &m.DedupKey, &m.SubmittedAt, &confirmedAt, &m.Status); err != nil {
			return nil, fmt.Errorf("postgres: scan history row: %w", err)
		}
		if block.Valid {
			m.Block = block.Int64
		}
		if blockHash.Valid {
			m.BlockHash = blockHash.String
		}
		if confirmedAt.Valid {
			m.ConfirmedAt = confirmedAt.Time
			m.HasConfirmed = true
		}
		if len(endorsements) > 0 {
			_ = json.Unmarshal(endorsements, &m.Endorsements)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkConfirmed transitions a transaction to CONFIRMED, setting block info
// once the ledger endorses it. Once CONFIRMED a row is never mutated again
// (spec.md §3), so this only applies from PENDING.
func (l *LedgerTransactions) MarkConfirmed(ctx context.Context, txID string, block int64, blockHash string, confirmedAt sql.NullTime) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE ledger_transactions SET status = 'CONFIRMED', block = $2, block_hash = $3, confirmed_at = $4
		WHERE tx_id = $1 AND status = 'PENDING'`, txID, block, blockHash, confirmedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark confirmed: %w", err)
	}
	return nil
}

// MarkRejected transitions a transaction to REJECTED.
func (l *LedgerTransactions) MarkRejected(ctx context.Context, txID string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE ledger_transactions SET status = 'REJECTED' WHERE tx_id = $1 AND status = 'PENDING'`, txID)
	if err != nil {
		return fmt.Errorf("postgres: mark rejected: %w", err)
	}
	return nil
}
