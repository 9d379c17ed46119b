package fixture

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rickgao/odds-history/internal/model"
)

// Record is one entry of a registry file. Kickoff is given either as
// kickoff_ts (seconds) or kickoff_utc (ISO 8601).
type Record struct {
	SchemaVersion string   `json:"schema_version,omitempty"`
	FixtureID     string   `json:"fixture_id"`
	LeagueID      string   `json:"league_id,omitempty"`
	LeagueName    string   `json:"league_name,omitempty"`
	Home          string   `json:"home"`
	Away          string   `json:"away"`
	KickoffTS     *float64 `json:"kickoff_ts,omitempty"`
	KickoffUTC    string   `json:"kickoff_utc,omitempty"`
	Date          string   `json:"date,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// Kickoff returns the record's kickoff time, preferring kickoff_ts.
func (r Record) Kickoff() (time.Time, bool) {
	if r.KickoffTS != nil {
		ts := *r.KickoffTS
		if math.IsNaN(ts) || math.IsInf(ts, 0) || ts <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(ts), 0).UTC(), true
	}
	if s := strings.TrimSpace(r.KickoffUTC); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Fixture converts the record to a model.Fixture for league, validating the
// fields the pipeline depends on.
func (r Record) Fixture(league string) (model.Fixture, error) {
	id := strings.TrimSpace(r.FixtureID)
	if id == "" {
		return model.Fixture{}, &model.ValidationError{Field: "fixture_id", Reason: "missing"}
	}
	if !model.ValidID(id) {
		return model.Fixture{}, &model.ValidationError{Field: "fixture_id", Reason: fmt.Sprintf("invalid id %q", id)}
	}
	if !model.ValidID(league) {
		return model.Fixture{}, &model.ValidationError{Field: "league", Reason: fmt.Sprintf("invalid id %q", league), Record: id}
	}
	if strings.TrimSpace(r.Home) == "" || strings.TrimSpace(r.Away) == "" {
		return model.Fixture{}, &model.ValidationError{Field: "home/away", Reason: "missing", Record: id}
	}
	kickoff, ok := r.Kickoff()
	if !ok {
		return model.Fixture{}, &model.ValidationError{Field: "kickoff", Reason: "missing or invalid", Record: id}
	}
	return model.Fixture{
		FixtureID: id,
		League:    league,
		Home:      r.Home,
		Away:      r.Away,
		KickoffTS: kickoff.Unix(),
	}, nil
}
