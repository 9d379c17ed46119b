package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Issue levels. Any CRITICAL issue marks the report as not OK.
const (
	LevelCritical = "CRITICAL"
	LevelError    = "ERROR"
)

// Issue is one problem found in the registry.
type Issue struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	FixtureID string `json:"fixture_id,omitempty"`
	Context   string `json:"context,omitempty"`
}

// Totals summarizes a validation pass.
type Totals struct {
	Files    int `json:"files"`
	Fixtures int `json:"fixtures"`
	Flagged  int `json:"flagged"`
	Critical int `json:"critical"`
}

// Report is the result of Validate.
type Report struct {
	OK          bool           `json:"ok"`
	GeneratedAt time.Time      `json:"generated_at"`
	Totals      Totals         `json:"totals"`
	Issues      []Issue        `json:"issues"`
	Duplicates  []string       `json:"duplicates"`
	ByLeague    map[string]int `json:"by_league"`
	ByDate      map[string]int `json:"by_date"`
}

func (r *Report) flag(level, msg, fixtureID, context string) {
	r.Issues = append(r.Issues, Issue{Level: level, Message: msg, FixtureID: fixtureID, Context: context})
	r.Totals.Flagged++
	if level == LevelCritical {
		r.Totals.Critical++
		r.OK = false
	}
}

// ValidateOptions bounds a validation pass.
type ValidateOptions struct {
	Leagues     []string // allowed league directories
	Now         time.Time
	PastLimit   time.Duration // default 24h
	FutureLimit time.Duration // default 7 days
}

type logicalKey struct {
	league, home, away string
	kickoff            int64
}

// Validate walks the whole registry and reports missing ids, duplicate ids,
// duplicate logical fixtures (same league, teams and kickoff under another
// id), missing teams, invalid kickoffs and unexpected league directories.
func (r *FileRegistry) Validate(ctx context.Context, opts ValidateOptions) (*Report, error) {
	if opts.PastLimit == 0 {
		opts.PastLimit = 24 * time.Hour
	}
	if opts.FutureLimit == 0 {
		opts.FutureLimit = 7 * 24 * time.Hour
	}
	window := Window{Now: opts.Now, Past: opts.PastLimit, Future: opts.FutureLimit}

	report := &Report{
		OK:          true,
		GeneratedAt: opts.Now.UTC(),
		Issues:      []Issue{},
		Duplicates:  []string{},
		ByLeague:    make(map[string]int),
		ByDate:      make(map[string]int),
	}

	leagues, err := r.Leagues()
	if err != nil {
		return nil, err
	}

	seenIDs := make(map[string]bool)
	seenKeys := make(map[logicalKey]string)

	for _, league := range leagues {
		if !slices.Contains(opts.Leagues, league) {
			report.flag(LevelError, fmt.Sprintf("unexpected league folder %s", league), "", "league="+league)
			continue
		}
		report.ByLeague[league] += 0

		files, err := r.dateFiles(league)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.Totals.Files++
			date := strings.TrimSuffix(strings.TrimPrefix(name, "date="), ".json")
			report.ByDate[date] += 0

			path := filepath.Join(r.dir, "league="+league, name)
			data, err := os.ReadFile(path)
			if err != nil {
				report.flag(LevelCritical, "unreadable file", "", path)
				continue
			}
			var records []Record
			if err := json.Unmarshal(data, &records); err != nil {
				report.flag(LevelCritical, "file does not contain a list of fixtures", "", path)
				continue
			}

			for _, rec := range records {
				report.Totals.Fixtures++
				report.ByLeague[league]++
				report.ByDate[date]++

				id := strings.TrimSpace(rec.FixtureID)
				if id == "" {
					report.flag(LevelCritical, "missing fixture_id", "", path)
					continue
				}
				if strings.TrimSpace(rec.Home) == "" || strings.TrimSpace(rec.Away) == "" {
					report.flag(LevelError, "missing home/away", id, path)
				}

				kickoff, ok := rec.Kickoff()
				if !ok {
					report.flag(LevelError, "invalid kickoff", id, path)
				} else if !window.Contains(kickoff) {
					report.flag(LevelError, "kickoff outside allowed window", id, path)
				}

				if seenIDs[id] {
					report.flag(LevelCritical, fmt.Sprintf("duplicate fixture_id %s", id), id, path)
					report.Duplicates = append(report.Duplicates, id)
				} else {
					seenIDs[id] = true
				}

				key := logicalKey{league: league, home: rec.Home, away: rec.Away, kickoff: kickoff.Unix()}
				if other, dup := seenKeys[key]; dup && other != id {
					report.flag(LevelCritical, "duplicate logical fixture (same teams and kickoff)", id, path)
				} else if !dup {
					seenKeys[key] = id
				}
			}
		}
	}

	return report, nil
}
