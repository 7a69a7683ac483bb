package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/versafe/versafe-core/internal/idgen"
	"github.com/versafe/versafe-core/internal/store/model"
)

// Documents is the repository for the documents table.
type Documents struct{ db *DB }

func (db *DB) Documents() *Documents { return &Documents{db: db} }

// Create inserts a new Document row in its initial state.
func (d *Documents) Create(ctx context.Context, doc *model.Document) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, title, file_name, media_type, size_bytes, storage_ref,
			digest_algo, digest, secondary_digest_algo, secondary_digest, security_level,
			signatures_required, state, scan_warn, expiry, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)`,
		doc.ID, doc.OwnerID, doc.Title, doc.FileName, doc.MediaType, doc.SizeBytes, doc.StorageRef,
		doc.DigestAlgo, doc.Digest, nullableAlgo(doc.SecondaryDigestAlgo), nullableBytes(doc.SecondaryDigest),
		doc.SecurityLevel, doc.SignaturesRequired, doc.State, doc.ScanWarn, doc.Expiry, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create document: %w", err)
	}
	return nil
}

func nullableAlgo(a model.DigestAlgo) sql.NullString {
	if a == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(a), Valid: true}
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (d *Documents) scan(row *sql.Row) (*model.Document, error) {
	var m model.Document
	var secAlgo, ledgerTx sql.NullString
	var secDigest []byte
	var ledgerBlock sql.NullInt64
	var expiry sql.NullTime
	var revokedReason sql.NullString

	err := row.Scan(&m.ID, &m.OwnerID, &m.Title, &m.FileName, &m.MediaType, &m.SizeBytes, &m.StorageRef,
		&m.DigestAlgo, &m.Digest, &secAlgo, &secDigest, &m.SecurityLevel, &m.SignaturesRequired,
		&m.State, &m.ScanWarn, &ledgerTx, &ledgerBlock, &expiry, &revokedReason, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan document: %w", err)
	}
	if secAlgo.Valid {
		m.SecondaryDigestAlgo = model.DigestAlgo(secAlgo.String)
		m.SecondaryDigest = secDigest
	}
	if ledgerTx.Valid {
		m.LedgerTxID = ledgerTx.String
	}
	if ledgerBlock.Valid {
		m.LedgerBlock = ledgerBlock.Int64
		m.HasLedgerBlock = true
	}
	if expiry.Valid {
		t := expiry.Time
		m.Expiry = &t
	}
	if revokedReason.Valid {
		m.RevokedReason = revokedReason.String
	}
	return &m, nil
}

const documentSelect = `SELECT id, owner_id, title, file_name, media_type, size_bytes, storage_ref,
	digest_algo, digest, secondary_digest_algo, secondary_digest, security_level, signatures_required,
	state, scan_warn, ledger_tx_id, ledger_block, expiry, revoked_reason, created_at, updated_at
	FROM documents`

// GetByID fetches a document by ID regardless of owner; callers enforce
// the owner-visibility rule (spec.md §7: NotFound is returned uniformly
// for unauthorised and absent resources).
func (d *Documents) GetByID(ctx context.Context, id idgen.ID) (*model.Document, error) {
	row := d.db.QueryRowContext(ctx, documentSelect+` WHERE id = $1`, id)
	return d.scan(row)
}

// ListFilter narrows List's results per spec.md §6
// ("GET /documents?page&limit&state&security_level").
type ListFilter struct {
	OwnerID       idgen.ID
	State         model.DocumentState // empty = any
	SecurityLevel model.SecurityLevel // empty = any
	Page, Limit   int
}

// List returns a page of documents owned by filter.OwnerID plus the total
// matching count, ordered newest-first (indexed on (owner_id, created_at)
// per spec.md §6). QUARANTINED documents are excluded — spec.md §7:
// "removed from user-visible lists."
func (d *Documents) List(ctx context.Context, f ListFilter) ([]*model.Document, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}
	args := []interface{}{f.OwnerID}
	where := `WHERE owner_id = $1 AND state <> 'QUARANTINED'`
	idx := 2
	if f.State != "" {
		where += fmt.Sprintf(" AND state = $%d", idx)
		args = append(args, f.State)
		idx++
	}
	if f.SecurityLevel != "" {
		where += fmt.Sprintf(" AND security_level = $%d", idx)
		args = append(args, f.SecurityLevel)
		idx++
	}

	var total int
	countQuery := `SELECT count(*) FROM documents ` + where
	if err := d.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count documents: %w", err)
	}

	query := documentSelect + " " + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var m model.Document
		var secAlgo, ledgerTx, revokedReason sql.NullString
		var secDigest []byte
		var ledgerBlock sql.NullInt64
		var expiry sql.NullTime
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Title, &m.FileName, &m.MediaType, &m.SizeBytes, &m.StorageRef,
			&m.DigestAlgo, &m.Digest, &secAlgo, &secDigest, &m.SecurityLevel, &m.SignaturesRequired,
			&m.State, &m.ScanWarn, &ledgerTx, &ledgerBlock, &expiry, &revokedReason, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan document row: %w", err)
		}
		if ledgerTx.Valid {
			m.LedgerTxID = ledgerTx.String
		}
		if ledgerBlock.Valid {
			m.LedgerBlock = ledgerBlock.Int64
			m.HasLedgerBlock = true
		}
		if expiry.Valid {
			t := expiry.Time
			m.Expiry = &t
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

// SetLedgerTx records a confirmed registration's tx id/block. Per spec.md
// §3: "once ledger_tx_id is set it is never mutated" — this must only be
// called once per document, which callers enforce by checking
// doc.LedgerTxID == "" first.
func (d *Documents) SetLedgerTx(ctx context.Context, id idgen.ID, txID string, block int64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE documents SET ledger_tx_id = $2, ledger_block = $3, updated_at = now() WHERE id = $1 AND ledger_tx_id IS NULL`,
		id, txID, block)
	if err != nil {
		return fmt.Errorf("postgres: set ledger tx: %w", err)
	}
	return nil
}

// SetState moves a document to a new state, validated by
// model.CanTransition before the caller invokes this. The UPDATE itself
// re-checks the expected `from` state so concurrent transitions are
// serialised by the row (spec.md §5: "linearised by a row-level lock on
// the Document row").
func (d *Documents) SetState(ctx context.Context, id idgen.ID, from, to model.DocumentState) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE documents SET state = $3, updated_at = now() WHERE id = $1 AND state = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("postgres: set document state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return n == 1, nil
}

// SetStateTx is SetState run against a caller-held transaction instead of
// the pool, so a sign-flow state transition lands on the same connection
// that holds the row's LockForUpdate lock. Running SetState (non-tx) on a
// row another transaction currently holds FOR UPDATE would block on a
// second connection until that same transaction commits — a self
// deadlock, since it's the handler's own in-flight transaction doing the
// holding (spec.md §5: the lock serialises sign/revoke/state-update calls
// for one document).
func (d *Documents) SetStateTx(ctx context.Context, tx *sql.Tx, id idgen.ID, from, to model.DocumentState) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET state = $3, updated_at = now() WHERE id = $1 AND state = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("postgres: set document state (tx): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return n == 1, nil
}

// Revoke moves a document to REVOKED unconditionally (idempotent: if
// already REVOKED this is a no-op that still returns success per spec.md
// §8 invariant #7).
func (d *Documents) Revoke(ctx context.Context, id idgen.ID, reason string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE documents SET state = 'REVOKED', revoked_reason = $2, updated_at = now()
		WHERE id = $1 AND state <> 'REVOKED'`, id, reason)
	if err != nil {
		return fmt.Errorf("postgres: revoke document: %w", err)
	}
	return nil
}

// LockForUpdate takes a row-level lock on a document within tx, serialising
// concurrent sign/revoke/state-update calls for the same document
// (spec.md §5).
func (d *Documents) LockForUpdate(ctx context.Context, tx *sql.Tx, id idgen.ID) (*model.Document, error) {
	row := tx.QueryRowContext(ctx, documentSelect+` WHERE id = $1 FOR UPDATE`, id)
	return d.scan(row)
}

// ListPendingRegistration returns every document still waiting on the
// ledger outbox to catch up (spec.md §4.5: a crash between steps 4 and 6
// leaves a REGISTRATION_PENDING row for the reconciliation pass to find).
func (d *Documents) ListPendingRegistration(ctx context.Context) ([]*model.Document, error) {
	rows, err := d.db.QueryContext(ctx, documentSelect+` WHERE state = 'REGISTRATION_PENDING' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending-registration documents: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var m model.Document
		var secAlgo, ledgerTx, revokedReason sql.NullString
		var secDigest []byte
		var ledgerBlock sql.NullInt64
		var expiry sql.NullTime
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Title, &m.FileName, &m.MediaType, &m.SizeBytes, &m.StorageRef,
			&m.DigestAlgo, &m.Digest, &secAlgo, &secDigest, &m.SecurityLevel, &m.SignaturesRequired,
			&m.State, &m.ScanWarn, &ledgerTx, &ledgerBlock, &expiry, &revokedReason, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan pending-registration document: %w", err)
		}
		if ledgerTx.Valid {
			m.LedgerTxID = ledgerTx.String
		}
		if ledgerBlock.Valid {
			m.LedgerBlock = ledgerBlock.Int64
			m.HasLedgerBlock = true
		}
		if expiry.Valid {
			t := expiry.Time
			m.Expiry = &t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
