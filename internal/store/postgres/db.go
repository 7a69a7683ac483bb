// Package postgres implements the Metadata Store (spec.md §2/§6) over
// database/sql and lib/pq. The teacher's own storage is a KV engine
// (tosdb/leveldb); a relational driver with FK integrity was added to the
// dependency set for this component (see DESIGN.md).
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the connection pool shared by every repository in this package.
type DB struct {
	*sql.DB
}

// Open connects to dsn and applies any migration not yet recorded in
// schema_version, mirroring the teacher's own startup schema-version check
// (core/rawdb) generalized to a numbered-file migration runner.
func Open(ctx context.Context, dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	db := &DB{DB: sqlDB}
	if err := db.migrate(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// migrationFiles lists the embedded migrations in apply order. Each file
// ends with its own INSERT INTO schema_version so migrate can tell which
// ones still need to run.
var migrationFiles = []struct {
	version int
	path    string
}{
	{1, "migrations/0001_init.sql"},
	{2, "migrations/0002_refresh_sessions.sql"},
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("postgres: bootstrap schema_version: %w", err)
	}
	var current int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("postgres: read schema_version: %w", err)
	}
	for _, m := range migrationFiles {
		if current >= m.version {
			continue
		}
		body, err := migrationsFS.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", m.path, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", m.path, err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction, rolling back on any error or panic
// and committing otherwise. Spec.md §5: "no handler holds a database
// transaction across a network call to another service" — callers must
// keep fn limited to store operations only.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}
