package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// createTableSQL holds one row per conversation. updated_at is the recency
// score; expires_at slides forward on every write.
const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    id          TEXT NOT NULL,
    user_id     TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    model       TEXT NOT NULL DEFAULT '',
    messages    JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at  TIMESTAMPTZ NOT NULL,
    version     BIGINT NOT NULL DEFAULT 1,
    PRIMARY KEY (user_id, id)
)`

// createRecencyIndexSQL serves List: a user's conversations newest first.
const createRecencyIndexSQL = `CREATE INDEX IF NOT EXISTS %s
    ON %s (user_id, updated_at DESC, id DESC)`

// createExpiryIndexSQL serves the TTL sweeper.
const createExpiryIndexSQL = `CREATE INDEX IF NOT EXISTS %s
    ON %s (expires_at)`

// EnsureSchema creates the conversations table and its indexes if they do
// not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("store: create table: %w", err)
	}

	recencyIdx := pgx.Identifier{"idx_" + s.baseName + "_user_recency"}.Sanitize()
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createRecencyIndexSQL, recencyIdx, s.tableName)); err != nil {
		return fmt.Errorf("store: create recency index: %w", err)
	}

	expiryIdx := pgx.Identifier{"idx_" + s.baseName + "_expires"}.Sanitize()
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createExpiryIndexSQL, expiryIdx, s.tableName)); err != nil {
		return fmt.Errorf("store: create expiry index: %w", err)
	}

	return nil
}
