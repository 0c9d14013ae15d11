package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const mediaSchema = `
CREATE TABLE IF NOT EXISTS media (
	id             UUID PRIMARY KEY,
	url            TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL DEFAULT '',
	hashtags       TEXT[] NOT NULL DEFAULT '{}',
	is_downloaded  BOOLEAN NOT NULL DEFAULT FALSE,
	payload        BYTEA,
	file_extension TEXT,
	file_size      BIGINT,
	local_path     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT media_payload_consistent CHECK (
		is_downloaded = (payload IS NOT NULL)
		AND (payload IS NULL OR (
			file_extension IS NOT NULL
			AND file_size = octet_length(payload)
			AND local_path IS NULL
		))
	)
);
CREATE INDEX IF NOT EXISTS media_created_at_idx ON media (created_at DESC);
CREATE INDEX IF NOT EXISTS media_local_path_idx ON media (local_path) WHERE local_path IS NOT NULL;
`

func NewPgxPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the media table if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, mediaSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
