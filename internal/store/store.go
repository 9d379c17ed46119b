// Package store persists snapshots with at-most-once semantics per dedup key.
//
// Snapshots are partitioned by (league, fixture). Before each write the store
// rebuilds the partition's existing-key index from persisted state, so no
// in-memory state carries over between runs. Writes to one partition
// serialize; writes to different partitions proceed independently.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/rickgao/odds-history/internal/model"
)

// Store is implemented by every snapshot backend.
type Store interface {
	// RecordSnapshot stores s unless a snapshot with the same dedup key exists.
	// It returns true if s was newly stored. A collision with a different price
	// returns false and a *model.DataIntegrityError; the stored snapshot is kept.
	RecordSnapshot(ctx context.Context, s model.Snapshot) (bool, error)

	// Snapshots returns a partition's snapshots in arrival order.
	Snapshots(ctx context.Context, league, fixtureID string) ([]model.Snapshot, error)

	// Partitions lists every partition holding at least one snapshot.
	Partitions(ctx context.Context) ([]model.Partition, error)

	// EnsureMeta records fixture metadata for the partition once.
	EnsureMeta(ctx context.Context, f model.Fixture) error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// DedupKey returns the hex SHA-256 of the snapshot's identity fields. Each
// field is length-prefixed so no two tuples share a hash input.
func DedupKey(s model.Snapshot) string {
	h := sha256.New()
	for _, part := range []string{s.FixtureID, s.Bookmaker, s.Market, s.Selection, s.OffsetBucket} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// checkCollision compares a new snapshot against the stored price for the same key.
func checkCollision(s model.Snapshot, key string, storedPrice float64) error {
	if storedPrice == s.Price {
		return nil
	}
	return &model.DataIntegrityError{
		Partition:   s.Partition(),
		DedupKey:    key,
		StoredPrice: storedPrice,
		NewPrice:    s.Price,
	}
}

// partitionLocks hands out one mutex per partition.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[model.Partition]*sync.Mutex
}

func (p *partitionLocks) lock(part model.Partition) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[model.Partition]*sync.Mutex)
	}
	l, ok := p.locks[part]
	if !ok {
		l = &sync.Mutex{}
		p.locks[part] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
