package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/odds-history/internal/model"
)

var t0 = time.Date(2025, 10, 19, 15, 0, 0, 0, time.UTC)

func snapshot(fixture, bucket string, price float64) model.Snapshot {
	return model.Snapshot{
		FixtureID:    fixture,
		League:       "ENG1",
		Bookmaker:    "pinnacle",
		Market:       "totals",
		Selection:    "OVER_2.5",
		Price:        price,
		CapturedAt:   t0,
		OffsetBucket: bucket,
	}
}

func TestDedupKey(t *testing.T) {
	a := snapshot("fx-1", "T-60m", 1.80)
	b := a
	b.Price = 2.10
	b.CapturedAt = t0.Add(time.Minute)
	b.RunID = "other"
	if DedupKey(a) != DedupKey(b) {
		t.Error("DedupKey should ignore price, capture time and run id")
	}
	if len(DedupKey(a)) != 64 {
		t.Errorf("len(DedupKey) = %d, want 64", len(DedupKey(a)))
	}

	c := a
	c.OffsetBucket = "T-30m"
	if DedupKey(a) == DedupKey(c) {
		t.Error("DedupKey should differ across offset buckets")
	}

	// Field boundaries are framed, so shifting characters between fields changes the key.
	d := a
	d.Bookmaker, d.Market = "pinnacletotals", ""
	if DedupKey(a) == DedupKey(d) {
		t.Error("DedupKey should not collide when field boundaries move")
	}

	e, f := a, a
	e.Market, e.Selection = "totals|OVER", "2.5"
	f.Market, f.Selection = "totals", "OVER|2.5"
	if DedupKey(e) == DedupKey(f) {
		t.Error("DedupKey should not collide when a field contains the separator")
	}
}

func TestFileStore_RecordSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)

	stored, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
	if err != nil || !stored {
		t.Fatalf("first RecordSnapshot = (%v, %v), want (true, nil)", stored, err)
	}

	stored, err = s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
	if err != nil || stored {
		t.Errorf("duplicate RecordSnapshot = (%v, %v), want (false, nil)", stored, err)
	}

	stored, err = s.RecordSnapshot(ctx, snapshot("fx-1", "T-30m", 1.85))
	if err != nil || !stored {
		t.Errorf("new bucket RecordSnapshot = (%v, %v), want (true, nil)", stored, err)
	}

	snaps, err := s.Snapshots(ctx, "ENG1", "fx-1")
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("len(snaps) = %d, want 2", len(snaps))
	}
	if snaps[0].OffsetBucket != "T-60m" || snaps[1].OffsetBucket != "T-30m" {
		t.Errorf("arrival order = [%s %s], want [T-60m T-30m]", snaps[0].OffsetBucket, snaps[1].OffsetBucket)
	}
	if snaps[0].SchemaVersion != model.SnapshotSchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", snaps[0].SchemaVersion, model.SnapshotSchemaVersion)
	}
	if snaps[0].DedupKey != DedupKey(snaps[0]) {
		t.Errorf("stored DedupKey = %q, want %q", snaps[0].DedupKey, DedupKey(snaps[0]))
	}
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s := NewFileStore(filepath.Join(base, "root"), nil)

	badLeague := snapshot("fx-1", "T-60m", 1.80)
	badLeague.League = "../x"

	for _, snap := range []model.Snapshot{snapshot("../../../../escaped", "T-60m", 1.80), badLeague} {
		stored, err := s.RecordSnapshot(ctx, snap)
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("RecordSnapshot(%s) error = %v, want *model.ValidationError", snap.Partition(), err)
		}
		if stored {
			t.Errorf("RecordSnapshot(%s) stored = true, want false", snap.Partition())
		}
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected snapshots created %d entries under %s", len(entries), base)
	}
	parts, err := s.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions failed: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("Partitions = %v, want none", parts)
	}
}

func TestFileStore_ConflictingPrice(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)

	if _, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80)); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	stored, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.95))
	if stored {
		t.Error("stored = true, want false")
	}
	var integrity *model.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("error = %v, want *model.DataIntegrityError", err)
	}
	if integrity.StoredPrice != 1.80 || integrity.NewPrice != 1.95 {
		t.Errorf("prices = (%v, %v), want (1.8, 1.95)", integrity.StoredPrice, integrity.NewPrice)
	}

	snaps, _ := s.Snapshots(ctx, "ENG1", "fx-1")
	if len(snaps) != 1 || snaps[0].Price != 1.80 {
		t.Errorf("stored snapshots = %+v, want single snapshot at 1.80", snaps)
	}
}

func TestFileStore_RebuildsIndexFromDisk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	if _, err := NewFileStore(root, nil).RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80)); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	// A fresh store has no memory of the first write.
	stored, err := NewFileStore(root, nil).RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
	if err != nil || stored {
		t.Errorf("RecordSnapshot after restart = (%v, %v), want (false, nil)", stored, err)
	}
}

func TestFileStore_InvalidSnapshot(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	snap := snapshot("fx-1", "T-60m", 1.0)

	_, err := s.RecordSnapshot(context.Background(), snap)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *model.ValidationError", err)
	}
	if verr.Field != "price" {
		t.Errorf("Field = %q, want %q", verr.Field, "price")
	}
}

func TestFileStore_ConcurrentSamePartition(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	storedCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80))
			if err != nil {
				t.Errorf("RecordSnapshot failed: %v", err)
			}
			if stored {
				mu.Lock()
				storedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if storedCount != 1 {
		t.Errorf("stored %d times, want exactly 1", storedCount)
	}
}

func TestFileStore_ConcurrentPartitions(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, bucket := range []string{"T-60m", "T-30m", "T-15m"} {
				if _, err := s.RecordSnapshot(ctx, snapshot(fmt.Sprintf("fx-%d", i), bucket, 1.5)); err != nil {
					t.Errorf("RecordSnapshot failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	parts, err := s.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions failed: %v", err)
	}
	if len(parts) != 8 {
		t.Fatalf("len(Partitions) = %d, want 8", len(parts))
	}
	for _, p := range parts {
		snaps, err := s.Snapshots(ctx, p.League, p.FixtureID)
		if err != nil {
			t.Fatalf("Snapshots(%s) failed: %v", p, err)
		}
		if len(snaps) != 3 {
			t.Errorf("Snapshots(%s) = %d, want 3", p, len(snaps))
		}
	}
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(root, nil)

	snap := snapshot("fx-1", "T-60m", 1.80)
	if _, err := s.RecordSnapshot(ctx, snap); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}

	want := filepath.Join(root, "odds", "snapshots", "league=ENG1", "fixture=fx-1",
		"000001_"+DedupKey(snap)[:16]+".json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected snapshot file %s: %v", want, err)
	}
}

func TestFileStore_SkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)

	if _, err := s.RecordSnapshot(ctx, snapshot("fx-1", "T-60m", 1.80)); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}
	dir := s.PartitionDir("ENG1", "fx-1")
	if err := os.WriteFile(filepath.Join(dir, "000002_0123456789abcdef.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	snaps, err := s.Snapshots(ctx, "ENG1", "fx-1")
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("len(snaps) = %d, want 1", len(snaps))
	}
}

func TestFileStore_EnsureMeta(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), nil)
	s.now = func() time.Time { return t0 }

	f := model.Fixture{FixtureID: "fx-1", League: "ENG1", Home: "Arsenal", Away: "Chelsea", KickoffTS: 1760889600}
	if err := s.EnsureMeta(ctx, f); err != nil {
		t.Fatalf("EnsureMeta failed: %v", err)
	}
	path := filepath.Join(s.PartitionDir("ENG1", "fx-1"), "meta.json")
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}

	s.now = func() time.Time { return t0.Add(time.Hour) }
	if err := s.EnsureMeta(ctx, f); err != nil {
		t.Fatalf("EnsureMeta failed: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("EnsureMeta rewrote an existing meta.json")
	}

	// meta.json alone does not make a partition.
	parts, err := s.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions failed: %v", err)
	}
	if len(parts) != 0 {
		t.Errorf("len(Partitions) = %d, want 0", len(parts))
	}
}

func TestFileStore_PartitionsEmptyRoot(t *testing.T) {
	parts, err := NewFileStore(t.TempDir(), nil).Partitions(context.Background())
	if err != nil || len(parts) != 0 {
		t.Errorf("Partitions() = (%v, %v), want (empty, nil)", parts, err)
	}
}

func TestParseSnapshotName(t *testing.T) {
	tests := []struct {
		name    string
		wantSeq int
		wantOK  bool
	}{
		{"000001_0123456789abcdef.json", 1, true},
		{"000120_0123456789abcdef.json", 120, true},
		{"meta.json", 0, false},
		{".000001_0123456789abcdef.json.tmp-123", 0, false},
		{"000001_short.json", 0, false},
		{"x_0123456789abcdef.json", 0, false},
	}
	for _, tt := range tests {
		seq, _, ok := parseSnapshotName(tt.name)
		if seq != tt.wantSeq || ok != tt.wantOK {
			t.Errorf("parseSnapshotName(%q) = (%d, %v), want (%d, %v)", tt.name, seq, ok, tt.wantSeq, tt.wantOK)
		}
	}
}
