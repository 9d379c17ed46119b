package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/odds-history/internal/fsutil"
	"github.com/rickgao/odds-history/internal/model"
)

const (
	metaFile  = "meta.json"
	keyPrefix = 16 // dedup key characters kept in the file name
)

// FileStore keeps one JSON file per snapshot under
// <root>/odds/snapshots/league=<L>/fixture=<F>/<seq>_<key16>.json.
type FileStore struct {
	root   string
	logger *slog.Logger
	locks  partitionLocks
	now    func() time.Time
}

// NewFileStore creates a FileStore rooted at root.
func NewFileStore(root string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		root:   root,
		logger: logger,
		now:    time.Now,
	}
}

// SnapshotsDir returns the directory holding all partitions.
func (s *FileStore) SnapshotsDir() string {
	return filepath.Join(s.root, "odds", "snapshots")
}

// PartitionDir returns the directory of one partition.
func (s *FileStore) PartitionDir(league, fixtureID string) string {
	return filepath.Join(s.SnapshotsDir(), "league="+league, "fixture="+fixtureID)
}

// RecordSnapshot implements Store.
func (s *FileStore) RecordSnapshot(ctx context.Context, snap model.Snapshot) (bool, error) {
	if err := snap.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := DedupKey(snap)
	snap.DedupKey = key
	if snap.SchemaVersion == "" {
		snap.SchemaVersion = model.SnapshotSchemaVersion
	}
	snap.CapturedAt = snap.CapturedAt.UTC()

	unlock := s.locks.lock(snap.Partition())
	defer unlock()

	dir := s.PartitionDir(snap.League, snap.FixtureID)
	idx, err := s.loadIndex(dir)
	if err != nil {
		return false, fmt.Errorf("load index %s: %w", snap.Partition(), err)
	}

	// Distinct keys may share a file name prefix; the full key decides.
	for _, name := range idx.names[key[:keyPrefix]] {
		stored, err := readSnapshot(filepath.Join(dir, name))
		if err != nil {
			return false, fmt.Errorf("read stored snapshot %s: %w", name, err)
		}
		if stored.DedupKey == key {
			return false, checkCollision(snap, key, stored.Price)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}
	name := fmt.Sprintf("%06d_%s.json", idx.nextSeq, key[:keyPrefix])
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, name), data, 0o644); err != nil {
		return false, fmt.Errorf("write snapshot %s: %w", snap.Partition(), err)
	}

	return true, nil
}

type partitionIndex struct {
	names   map[string][]string // key prefix -> file names
	nextSeq int
}

// loadIndex rebuilds the existing-key index from the partition directory.
func (s *FileStore) loadIndex(dir string) (partitionIndex, error) {
	idx := partitionIndex{names: make(map[string][]string), nextSeq: 1}

	names, err := snapshotFiles(dir)
	if err != nil {
		return idx, err
	}
	for _, name := range names {
		seq, prefix, ok := parseSnapshotName(name)
		if !ok {
			continue
		}
		idx.names[prefix] = append(idx.names[prefix], name)
		if seq >= idx.nextSeq {
			idx.nextSeq = seq + 1
		}
	}
	return idx, nil
}

// Snapshots implements Store.
func (s *FileStore) Snapshots(ctx context.Context, league, fixtureID string) ([]model.Snapshot, error) {
	dir := s.PartitionDir(league, fixtureID)
	names, err := snapshotFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]model.Snapshot, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := readSnapshot(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot",
				"partition", model.Partition{League: league, FixtureID: fixtureID}.String(),
				"file", name,
				"error", err,
			)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Partitions implements Store.
func (s *FileStore) Partitions(ctx context.Context) ([]model.Partition, error) {
	leagues, err := os.ReadDir(s.SnapshotsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}

	var parts []model.Partition
	for _, l := range leagues {
		league, ok := strings.CutPrefix(l.Name(), "league=")
		if !l.IsDir() || !ok {
			continue
		}
		fixtures, err := os.ReadDir(filepath.Join(s.SnapshotsDir(), l.Name()))
		if err != nil {
			return nil, fmt.Errorf("list fixtures for %s: %w", league, err)
		}
		for _, f := range fixtures {
			fixtureID, ok := strings.CutPrefix(f.Name(), "fixture=")
			if !f.IsDir() || !ok {
				continue
			}
			names, err := snapshotFiles(filepath.Join(s.SnapshotsDir(), l.Name(), f.Name()))
			if err != nil {
				return nil, err
			}
			if len(names) > 0 {
				parts = append(parts, model.Partition{League: league, FixtureID: fixtureID})
			}
		}
	}
	return parts, ctx.Err()
}

// EnsureMeta implements Store. An existing meta.json is never rewritten.
func (s *FileStore) EnsureMeta(ctx context.Context, f model.Fixture) error {
	unlock := s.locks.lock(f.Partition())
	defer unlock()

	path := filepath.Join(s.PartitionDir(f.League, f.FixtureID), metaFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	meta := model.FixtureMeta{
		FixtureID:  f.FixtureID,
		League:     f.League,
		Home:       f.Home,
		Away:       f.Away,
		KickoffTS:  f.KickoffTS,
		KickoffUTC: f.Kickoff().Format(time.RFC3339),
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	data, err := fsutil.MarshalJSON(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write meta %s: %w", f.Partition(), err)
	}
	return nil
}

// snapshotFiles lists snapshot file names in seq order. A missing directory
// is an empty partition.
func snapshotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := parseSnapshotName(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, _, _ := parseSnapshotName(names[i])
		b, _, _ := parseSnapshotName(names[j])
		return a < b
	})
	return names, nil
}

// parseSnapshotName splits "<seq>_<key16>.json".
func parseSnapshotName(name string) (seq int, prefix string, ok bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found {
		return 0, "", false
	}
	seqStr, prefix, found := strings.Cut(base, "_")
	if !found || len(prefix) != keyPrefix {
		return 0, "", false
	}
	seq, err := strconv.Atoi(seqStr)
	if err != nil || seq < 1 {
		return 0, "", false
	}
	return seq, prefix, true
}

func readSnapshot(path string) (model.Snapshot, error) {
	var snap model.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode: %w", err)
	}
	return snap, nil
}
