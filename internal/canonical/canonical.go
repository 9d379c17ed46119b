// Package canonical reduces a fixture's snapshots to opening and current
// prices per (market, bookmaker, selection).
package canonical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rickgao/odds-history/internal/fsutil"
	"github.com/rickgao/odds-history/internal/model"
)

// SnapshotReader returns a partition's snapshots in arrival order.
type SnapshotReader interface {
	Snapshots(ctx context.Context, league, fixtureID string) ([]model.Snapshot, error)
}

// Canonicalizer builds and persists canonical records.
type Canonicalizer struct {
	snapshots SnapshotReader
	root      string
	logger    *slog.Logger
}

// New creates a Canonicalizer writing under <root>/odds/canonical.
func New(snapshots SnapshotReader, root string, logger *slog.Logger) *Canonicalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Canonicalizer{snapshots: snapshots, root: root, logger: logger}
}

// Path returns the canonical record path for a partition.
func Path(root, league, fixtureID string) string {
	return filepath.Join(root, "odds", "canonical", "league="+league, "fixture="+fixtureID, "canonical.json")
}

// Canonicalize reads the partition's snapshots and builds its record.
// ok is false when fewer than two distinct capture times exist.
func (c *Canonicalizer) Canonicalize(ctx context.Context, league, fixtureID string) (model.CanonicalRecord, bool, error) {
	snaps, err := c.snapshots.Snapshots(ctx, league, fixtureID)
	if err != nil {
		return model.CanonicalRecord{}, false, fmt.Errorf("read snapshots %s/%s: %w", league, fixtureID, err)
	}
	rec, ok := Build(league, fixtureID, snaps)
	return rec, ok, nil
}

// Write persists rec atomically. It reports false when the file already
// held identical bytes.
func (c *Canonicalizer) Write(rec model.CanonicalRecord) (bool, error) {
	data, err := fsutil.MarshalJSON(rec)
	if err != nil {
		return false, fmt.Errorf("marshal canonical: %w", err)
	}
	path := Path(c.root, rec.League, rec.FixtureID)
	written, err := fsutil.WriteIfChanged(path, data, 0o644)
	if err != nil {
		return false, fmt.Errorf("write canonical %s: %w", path, err)
	}
	if written {
		c.logger.Debug("canonical written", "league", rec.League, "fixture_id", rec.FixtureID)
	}
	return written, nil
}

// Read loads a persisted canonical record.
func Read(root, league, fixtureID string) (model.CanonicalRecord, error) {
	var rec model.CanonicalRecord
	data, err := os.ReadFile(Path(root, league, fixtureID))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode canonical: %w", err)
	}
	return rec, nil
}

type groupKey struct {
	market, bookmaker, selection string
}

// Build reduces snapshots to a canonical record. Snapshots are grouped per
// (market, bookmaker, selection) and ordered by capture time, keeping arrival
// order for equal times. Current is the last price of each group. Opening is
// the first price only when the group was present in the earliest poll;
// otherwise it stays nil.
func Build(league, fixtureID string, snaps []model.Snapshot) (model.CanonicalRecord, bool) {
	times := make(map[int64]struct{})
	for _, s := range snaps {
		times[s.CapturedAt.UnixNano()] = struct{}{}
	}
	if len(times) < 2 {
		return model.CanonicalRecord{}, false
	}

	openingTS, currentTS := snaps[0].CapturedAt, snaps[0].CapturedAt
	groups := make(map[groupKey][]model.Snapshot)
	for _, s := range snaps {
		if s.CapturedAt.Before(openingTS) {
			openingTS = s.CapturedAt
		}
		if s.CapturedAt.After(currentTS) {
			currentTS = s.CapturedAt
		}
		k := groupKey{s.Market, s.Bookmaker, s.Selection}
		groups[k] = append(groups[k], s)
	}

	markets := make(model.MarketBook)
	for k, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].CapturedAt.Before(g[j].CapturedAt)
		})

		pair := model.PricePair{Current: price(g[len(g)-1].Price)}
		if g[0].CapturedAt.Equal(openingTS) {
			pair.Opening = price(g[0].Price)
		}

		if markets[k.market] == nil {
			markets[k.market] = make(map[string]map[string]model.PricePair)
		}
		if markets[k.market][k.bookmaker] == nil {
			markets[k.market][k.bookmaker] = make(map[string]model.PricePair)
		}
		markets[k.market][k.bookmaker][k.selection] = pair
	}

	return model.CanonicalRecord{
		SchemaVersion: model.CanonicalSchemaVersion,
		League:        league,
		FixtureID:     fixtureID,
		OpeningTS:     openingTS.UTC().Truncate(time.Second),
		CurrentTS:     currentTS.UTC().Truncate(time.Second),
		Markets:       markets,
	}, true
}

func price(p float64) *float64 {
	return &p
}
