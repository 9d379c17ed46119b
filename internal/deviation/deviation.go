// Package deviation scans canonical records for significant price movements
// and writes the ranked radar.
package deviation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/odds-history/internal/fsutil"
	"github.com/rickgao/odds-history/internal/model"
)

// DefaultThresholds are the per-market significance thresholds.
var DefaultThresholds = map[string]float64{
	"h2h":    0.20,
	"totals": 0.10,
}

const deltaPlaces = 3

// Engine emits at most one deviation per fixture: its largest qualifying move.
type Engine struct {
	thresholds map[string]decimal.Decimal
	bookmakers map[string]bool // nil = all
}

// New creates an Engine. Markets absent from thresholds are never scanned.
// A non-empty bookmakers list restricts the scan to those bookmakers.
func New(thresholds map[string]float64, bookmakers []string) *Engine {
	e := &Engine{thresholds: make(map[string]decimal.Decimal, len(thresholds))}
	for market, th := range thresholds {
		e.thresholds[market] = decimal.NewFromFloat(th)
	}
	if len(bookmakers) > 0 {
		e.bookmakers = make(map[string]bool, len(bookmakers))
		for _, b := range bookmakers {
			e.bookmakers[b] = true
		}
	}
	return e
}

// Scan returns the best deviation of each record, sorted by abs_delta
// descending. Equal abs_delta values keep input order.
func (e *Engine) Scan(records []model.CanonicalRecord) []model.DeviationEvent {
	out := make([]model.DeviationEvent, 0, len(records))
	for _, rec := range records {
		if ev, ok := e.best(rec); ok {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AbsDelta > out[j].AbsDelta
	})
	return out
}

// best finds the record's largest qualifying move. Keys are visited in sorted
// order so the first of several equal moves is well defined.
func (e *Engine) best(rec model.CanonicalRecord) (model.DeviationEvent, bool) {
	var (
		bestEv  model.DeviationEvent
		bestAbs decimal.Decimal
		found   bool
	)

	for _, market := range sortedKeys(rec.Markets) {
		threshold, ok := e.thresholds[market]
		if !ok {
			continue
		}
		books := rec.Markets[market]
		for _, bookmaker := range sortedKeys(books) {
			if e.bookmakers != nil && !e.bookmakers[bookmaker] {
				continue
			}
			sels := books[bookmaker]
			for _, sel := range sortedKeys(sels) {
				pair := sels[sel]
				if pair.Opening == nil || pair.Current == nil {
					continue
				}
				opening := decimal.NewFromFloat(*pair.Opening)
				current := decimal.NewFromFloat(*pair.Current)
				delta := current.Sub(opening)
				abs := delta.Abs()
				if abs.LessThan(threshold) {
					continue
				}
				if found && !abs.GreaterThan(bestAbs) {
					continue
				}
				found, bestAbs = true, abs
				bestEv = model.DeviationEvent{
					FixtureID: rec.FixtureID,
					League:    rec.League,
					Market:    market,
					Selection: sel,
					Bookmaker: bookmaker,
					Opening:   *pair.Opening,
					Current:   *pair.Current,
					Delta:     delta.Round(deltaPlaces).InexactFloat64(),
					AbsDelta:  abs.Round(deltaPlaces).InexactFloat64(),
				}
			}
		}
	}
	return bestEv, found
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RadarPath returns the radar document path under root.
func RadarPath(root string) string {
	return filepath.Join(root, "odds", "deviations", "radar.json")
}

// WriteRadar writes the radar atomically. Readers see either the previous
// document or the new one.
func WriteRadar(root string, radar model.Radar) error {
	if radar.SchemaVersion == "" {
		radar.SchemaVersion = model.RadarSchemaVersion
	}
	if radar.Items == nil {
		radar.Items = []model.DeviationEvent{}
	}
	data, err := fsutil.MarshalJSON(radar)
	if err != nil {
		return fmt.Errorf("marshal radar: %w", err)
	}
	if err := fsutil.WriteFileAtomic(RadarPath(root), data, 0o644); err != nil {
		return fmt.Errorf("write radar: %w", err)
	}
	return nil
}

// ReadRadar loads the radar document under root.
func ReadRadar(root string) (model.Radar, error) {
	var radar model.Radar
	data, err := os.ReadFile(RadarPath(root))
	if err != nil {
		return radar, err
	}
	if err := json.Unmarshal(data, &radar); err != nil {
		return radar, fmt.Errorf("decode radar: %w", err)
	}
	return radar, nil
}
