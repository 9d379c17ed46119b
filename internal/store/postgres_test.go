package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/odds-history/internal/database"
	"github.com/rickgao/odds-history/internal/model"
)

// newTestPostgres connects to ODDS_TEST_POSTGRES_URL, or skips.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("ODDS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ODDS_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE odds_snapshots, odds_fixture_meta`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgresStore(pool, nil)
}

func TestPostgresStore_RecordSnapshot(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	stored, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
	if err != nil || !stored {
		t.Fatalf("first RecordSnapshot = (%v, %v), want (true, nil)", stored, err)
	}
	stored, err = s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
	if err != nil || stored {
		t.Errorf("duplicate RecordSnapshot = (%v, %v), want (false, nil)", stored, err)
	}

	_, err = s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 2.00))
	var integrity *model.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Errorf("error = %v, want *model.DataIntegrityError", err)
	}

	if _, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-30m", 1.85)); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	snaps, err := s.Snapshots(ctx, "ENG1", "fx-1")
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Price != 1.80 || snaps[1].OffsetBucket != "T-30m" {
		t.Errorf("Snapshots = %+v, want [T-60m@1.80 T-30m@1.85]", snaps)
	}

	parts, err := s.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions failed: %v", err)
	}
	if len(parts) != 1 || parts[0] != (model.Partition{League: "ENG1", FixtureID: "fx-1"}) {
		t.Errorf("Partitions = %v, want [league=ENG1/fixture=fx-1]", parts)
	}

	f := model.Fixture{FixtureID: "fx-1", League: "ENG1", Home: "Arsenal", Away: "Chelsea", KickoffTS: 1760889600}
	if err := s.EnsureMeta(ctx, f); err != nil {
		t.Fatalf("EnsureMeta failed: %v", err)
	}
	if err := s.EnsureMeta(ctx, f); err != nil {
		t.Fatalf("second EnsureMeta failed: %v", err)
	}
}

func TestPostgresStore_InvalidSnapshotSkipsDatabase(t *testing.T) {
	// A nil DB would panic if touched.
	s := NewPostgresStore(nil, nil)
	_, err := s.RecordSnapshot(context.Background(), model.Snapshot{})
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error = %v, want *model.ValidationError", err)
	}
}
