package postgres

import (
	"context"
	"fmt"

	"github.com/versafe/versafe-core/internal/idgen"
)

// Metadata is the repository for the document_metadata table: the
// best-effort key/value bag Document Ingest's media-specific extraction
// step attaches to a Document (spec.md §4.5 step 5).
type Metadata struct{ db *DB }

func (db *DB) Metadata() *Metadata { return &Metadata{db: db} }

// Put upserts one key/value pair for a document.
func (m *Metadata) Put(ctx context.Context, documentID idgen.ID, key, value string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO document_metadata (document_id, key, value) VALUES ($1,$2,$3)
		ON CONFLICT (document_id, key) DO UPDATE SET value = EXCLUDED.value`,
		documentID, key, value)
	if err != nil {
		return fmt.Errorf("postgres: put document metadata: %w", err)
	}
	return nil
}

// PutAll upserts every entry of kv for a document, continuing past a
// single failed key so one bad extraction doesn't blank out the rest
// (spec.md §4.5: "errors are captured in metadata, never fatal").
func (m *Metadata) PutAll(ctx context.Context, documentID idgen.ID, kv map[string]string) error {
	var firstErr error
	for k, v := range kv {
		if err := m.Put(ctx, documentID, k, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns every metadata key/value pair stored for a document.
func (m *Metadata) Get(ctx context.Context, documentID idgen.ID) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT key, value FROM document_metadata WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get document metadata: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan document metadata: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
