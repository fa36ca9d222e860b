// Package postgres persists diamond state changesets in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS diamond_state (
	key        BYTEA PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Journal is a state.Journal backed by the diamond_state table.
type Journal struct {
	db *sqlx.DB
}

var _ state.Journal = (*Journal)(nil)

// New wraps an open database handle.
func New(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

// Open connects to dsn.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// Close closes the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Migrate creates the state table.
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate diamond_state: %w", err)
	}
	return nil
}

type row struct {
	Key   []byte `db:"key"`
	Value []byte `db:"value"`
}

// Load implements state.Journal.
func (j *Journal) Load(ctx context.Context, fn func(key, value []byte) error) error {
	rows, err := j.db.QueryxContext(ctx, `SELECT key, value FROM diamond_state ORDER BY key`)
	if err != nil {
		return fmt.Errorf("load diamond_state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("scan diamond_state: %w", err)
		}
		if err := fn(r.Key, r.Value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Commit implements state.Journal. The changeset is applied in one
// transaction.
func (j *Journal) Commit(ctx context.Context, changes []state.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	for _, c := range changes {
		if c.Deleted {
			_, err = tx.ExecContext(ctx, `DELETE FROM diamond_state WHERE key = $1`, c.Key)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO diamond_state (key, value, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
			`, c.Key, c.Value)
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("commit key %x: %w", c.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}
	return nil
}
