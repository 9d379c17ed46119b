package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/odds-history/internal/model"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps snapshots in the odds_snapshots table. Partition writes
// serialize on a transaction-scoped advisory lock, so several collector
// processes may share one database.
type PostgresStore struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresStore creates a PostgresStore. The schema must already exist
// (see database.Migrate).
func NewPostgresStore(db DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger, now: time.Now}
}

const (
	lockPartitionSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	selectPriceSQL = `SELECT price FROM odds_snapshots WHERE dedup_key = $1`

	insertSnapshotSQL = `
		INSERT INTO odds_snapshots (
			dedup_key, schema_version, run_id, league, fixture_id,
			bookmaker, market, selection, price, captured_at, offset_bucket
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dedup_key) DO NOTHING`

	selectSnapshotsSQL = `
		SELECT dedup_key, schema_version, run_id, league, fixture_id,
			bookmaker, market, selection, price, captured_at, offset_bucket
		FROM odds_snapshots
		WHERE league = $1 AND fixture_id = $2
		ORDER BY seq`

	selectPartitionsSQL = `
		SELECT DISTINCT league, fixture_id
		FROM odds_snapshots
		ORDER BY league, fixture_id`

	insertMetaSQL = `
		INSERT INTO odds_fixture_meta (league, fixture_id, home, away, kickoff_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (league, fixture_id) DO NOTHING`
)

// RecordSnapshot implements Store.
func (s *PostgresStore) RecordSnapshot(ctx context.Context, snap model.Snapshot) (stored bool, err error) {
	if err := snap.Validate(); err != nil {
		return false, err
	}
	key := DedupKey(snap)
	if snap.SchemaVersion == "" {
		snap.SchemaVersion = model.SnapshotSchemaVersion
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, lockPartitionSQL, snap.Partition().String()); err != nil {
		return false, fmt.Errorf("lock partition %s: %w", snap.Partition(), err)
	}

	var storedPrice float64
	err = tx.QueryRow(ctx, selectPriceSQL, key).Scan(&storedPrice)
	switch {
	case err == nil:
		_ = tx.Rollback(ctx)
		return false, checkCollision(snap, key, storedPrice)
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("lookup dedup key: %w", err)
	}

	tag, err := tx.Exec(ctx, insertSnapshotSQL,
		key, snap.SchemaVersion, snap.RunID, snap.League, snap.FixtureID,
		snap.Bookmaker, snap.Market, snap.Selection, snap.Price, snap.CapturedAt.UTC(), snap.OffsetBucket,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	// RowsAffected == 0 means another writer won the key between lookup and insert.
	return tag.RowsAffected() == 1, nil
}

// Snapshots implements Store.
func (s *PostgresStore) Snapshots(ctx context.Context, league, fixtureID string) ([]model.Snapshot, error) {
	rows, err := s.db.Query(ctx, selectSnapshotsSQL, league, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(
			&snap.DedupKey, &snap.SchemaVersion, &snap.RunID, &snap.League, &snap.FixtureID,
			&snap.Bookmaker, &snap.Market, &snap.Selection, &snap.Price, &snap.CapturedAt, &snap.OffsetBucket,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CapturedAt = snap.CapturedAt.UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Partitions implements Store.
func (s *PostgresStore) Partitions(ctx context.Context) ([]model.Partition, error) {
	rows, err := s.db.Query(ctx, selectPartitionsSQL)
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer rows.Close()

	var out []model.Partition
	for rows.Next() {
		var p model.Partition
		if err := rows.Scan(&p.League, &p.FixtureID); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnsureMeta implements Store.
func (s *PostgresStore) EnsureMeta(ctx context.Context, f model.Fixture) error {
	_, err := s.db.Exec(ctx, insertMetaSQL,
		f.League, f.FixtureID, f.Home, f.Away, f.KickoffTS, s.now().UTC().Truncate(time.Second),
	)
	if err != nil {
		return fmt.Errorf("insert meta %s: %w", f.Partition(), err)
	}
	return nil
}
