package fixture

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
	"strings"
	"time"

	"github.com/rickgao/odds-history/internal/model"
)

const dateLayout = "2006-01-02"

// Window selects fixtures by kickoff relative to a reference time.
type Window struct {
	Now    time.Time
	Past   time.Duration // kickoffs up to Past before Now
	Future time.Duration // kickoffs up to Future after Now
}

// Contains reports whether kickoff falls inside the window.
func (w Window) Contains(kickoff time.Time) bool {
	return !kickoff.Before(w.Now.Add(-w.Past)) && !kickoff.After(w.Now.Add(w.Future))
}

// coversDate reports whether a date file may hold fixtures inside the window.
// A day of slack on both sides absorbs timezone differences in file naming.
func (w Window) coversDate(day time.Time) bool {
	start := w.Now.Add(-w.Past).Add(-24 * time.Hour)
	end := w.Now.Add(w.Future).Add(24 * time.Hour)
	return !day.Before(start.Truncate(24*time.Hour)) && !day.After(end)
}

// FileRegistry reads fixtures from the registry file tree.
type FileRegistry struct {
	dir    string
	logger *slog.Logger
}

// NewFileRegistry creates a FileRegistry rooted at dir.
func NewFileRegistry(dir string, logger *slog.Logger) *FileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRegistry{dir: dir, logger: logger}
}

// Load returns the fixtures of the given leagues whose kickoff lies in w.
// Invalid records are logged and skipped; the first occurrence of a
// fixture_id wins. A league without a registry directory yields no fixtures.
func (r *FileRegistry) Load(ctx context.Context, leagues []string, w Window) ([]model.Fixture, error) {
	sorted := append([]string(nil), leagues...)
	sort.Strings(sorted)

	seen := make(map[string]bool)
	var out []model.Fixture
	for _, league := range sorted {
		files, err := r.dateFiles(league)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, "date="), ".json"))
			if err == nil && !w.coversDate(day) {
				continue
			}

			path := filepath.Join(r.dir, "league="+league, name)
			records, err := readRecords(path)
			if err != nil {
				r.logger.Warn("skipping unreadable fixture file", "league", league, "file", path, "error", err)
				continue
			}
			for _, rec := range records {
				fx, err := rec.Fixture(league)
				if err != nil {
					r.logger.Warn("skipping invalid fixture", "league", league, "file", name, "error", err)
					continue
				}
				if !w.Contains(fx.Kickoff()) || seen[fx.FixtureID] {
					continue
				}
				seen[fx.FixtureID] = true
				out = append(out, fx)
			}
		}
	}

	r.logger.Debug("fixtures loaded", "leagues", len(sorted), "fixtures", len(out))
	return out, nil
}

// Leagues lists the league directories present in the registry.
func (r *FileRegistry) Leagues() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", r.dir, err)
	}
	var out []string
	for _, e := range entries {
		if league, ok := strings.CutPrefix(e.Name(), "league="); ok && e.IsDir() {
			out = append(out, league)
		}
	}
	sort.Strings(out)
	return out, nil
}

// dateFiles lists date=<D>.json files of a league in name order.
func (r *FileRegistry) dateFiles(league string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dir, "league="+league))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read league %s: %w", league, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "date=") && strings.HasSuffix(name, ".json") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
