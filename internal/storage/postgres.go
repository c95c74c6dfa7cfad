package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists keys as JSONB rows in kv_entries.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store. The kv_entries table
// is created by the embedded migrations in infra.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get selects the requested keys.
func (s *PostgresStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `SELECT key, value::text FROM kv_entries WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: querying kv_entries: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: scanning kv entry: %v", ErrUnavailable, err)
		}
		out[key] = []byte(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating kv entries: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Put upserts every entry inside one transaction.
func (s *PostgresStore) Put(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const upsert = `INSERT INTO kv_entries (key, value, updated_at)
        VALUES ($1, $2::jsonb, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	for k, v := range entries {
		if _, err := tx.Exec(ctx, upsert, k, string(v)); err != nil {
			return fmt.Errorf("%w: upserting %s: %v", ErrUnavailable, k, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}
