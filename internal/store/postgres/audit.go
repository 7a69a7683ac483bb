package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/versafe/versafe-core/internal/store/model"
)

// AuditRecords is the repository for the audit_records table.
type AuditRecords struct{ db *DB }

func (db *DB) AuditRecords() *AuditRecords { return &AuditRecords{db: db} }

// Append inserts a new AuditRecord (spec.md §3/§4.8: append-only, chained
// by entry_hash). The caller (internal/audit) computes prev_hash/entry_hash
// before calling Append.
func (a *AuditRecords) Append(ctx context.Context, r *model.AuditRecord) error {
	meta, err := json.Marshal(r.RequestMeta)
	if err != nil {
		return fmt.Errorf("postgres: marshal request_meta: %w", err)
	}
	shard := model.ShardFor(r.Service, r.CreatedAt)
	var userID interface{}
	if r.HasUser {
		userID = r.UserID
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, service, action, user_id, resource_kind, resource_id,
			request_meta, status_code, latency_ms, prev_hash, entry_hash, shard_day, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.Service, r.Action, userID, r.ResourceKind, r.ResourceID, meta, r.StatusCode,
		r.Latency.Milliseconds(), r.PrevHash, r.EntryHash, shard.Day, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append audit record: %w", err)
	}
	return nil
}

// LastEntryHash returns the entry_hash of the most recent record in a
// shard, or nil if the shard is empty (the chain's genesis prev_hash).
func (a *AuditRecords) LastEntryHash(ctx context.Context, shard model.Shard) ([]byte, error) {
	var hash []byte
	err := a.db.QueryRowContext(ctx, `
		SELECT entry_hash FROM audit_records WHERE service = $1 AND shard_day = $2
		ORDER BY created_at DESC LIMIT 1`, shard.Service, shard.Day).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: last entry hash: %w", err)
	}
	return hash, nil
}

// ListShard returns every record in a shard in insertion order, the
// sequence internal/audit.VerifyChain recomputes the hash chain over
// (spec.md §8 invariant #4).
func (a *AuditRecords) ListShard(ctx context.Context, shard model.Shard) ([]*model.AuditRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, service, action, user_id, resource_kind, resource_id, request_meta, status_code,
			latency_ms, prev_hash, entry_hash, created_at
		FROM audit_records WHERE service = $1 AND shard_day = $2 ORDER BY created_at ASC`,
		shard.Service, shard.Day)
	if err != nil {
		return nil, fmt.Errorf("postgres: list shard: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditRecord
	for rows.Next() {
		var m model.AuditRecord
		var userID []byte
		var meta []byte
		var latencyMS int64
		if err := rows.Scan(&m.ID, &m.Service, &m.Action, &userID, &m.ResourceKind, &m.ResourceID,
			&meta, &m.StatusCode, &latencyMS, &m.PrevHash, &m.EntryHash, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit record: %w", err)
		}
		if len(userID) == len(m.UserID) {
			copy(m.UserID[:], userID)
			m.HasUser = true
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &m.RequestMeta)
		}
		m.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, &m)
	}
	return out, rows.Err()
}
