package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/odds-history/internal/config"
)

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Schema creates the snapshot tables. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS odds_snapshots (
		dedup_key      TEXT PRIMARY KEY,
		seq            BIGSERIAL NOT NULL,
		schema_version TEXT NOT NULL,
		run_id         TEXT NOT NULL DEFAULT '',
		league         TEXT NOT NULL,
		fixture_id     TEXT NOT NULL,
		bookmaker      TEXT NOT NULL,
		market         TEXT NOT NULL,
		selection      TEXT NOT NULL,
		price          DOUBLE PRECISION NOT NULL,
		captured_at    TIMESTAMPTZ NOT NULL,
		offset_bucket  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS odds_snapshots_partition_idx
		ON odds_snapshots (league, fixture_id, seq)`,
	`CREATE TABLE IF NOT EXISTS odds_fixture_meta (
		league     TEXT NOT NULL,
		fixture_id TEXT NOT NULL,
		home       TEXT NOT NULL,
		away       TEXT NOT NULL,
		kickoff_ts BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (league, fixture_id)
	)`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
