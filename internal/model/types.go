package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Schema versions written into persisted documents.
const (
	SnapshotSchemaVersion  = "odds_snapshot_v3"
	CanonicalSchemaVersion = "odds_canonical_v1"
	RadarSchemaVersion     = "odds_radar_v1"
)

// -----------------------------------------------------------------------------
// Inputs
// -----------------------------------------------------------------------------

// Fixture is one record from the fixture registry. The pipeline never mutates it.
type Fixture struct {
	FixtureID string `json:"fixture_id"`
	League    string `json:"league"`
	Home      string `json:"home"`
	Away      string `json:"away"`
	KickoffTS int64  `json:"kickoff_ts"` // seconds since epoch, UTC
}

// Kickoff returns the kickoff as a UTC time.
func (f Fixture) Kickoff() time.Time {
	return time.Unix(f.KickoffTS, 0).UTC()
}

// Partition returns the storage partition the fixture's snapshots live in.
func (f Fixture) Partition() Partition {
	return Partition{League: f.League, FixtureID: f.FixtureID}
}

// ProviderEvent is one event returned by the odds provider for a league.
type ProviderEvent struct {
	EventID      string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time // zero if the provider value could not be parsed
	Bookmakers   []Bookmaker
}

// Bookmaker holds one bookmaker's markets for an event.
type Bookmaker struct {
	Key     string
	Markets []Market
}

// Market holds the outcomes for one market key (h2h, totals, ...).
type Market struct {
	Key      string
	Outcomes []Outcome
}

// Outcome is a single priced selection. Point is set for line markets.
type Outcome struct {
	Name  string
	Price float64
	Point *float64
}

// Selection returns the selection identity for the outcome.
func (o Outcome) Selection() string {
	return SelectionKey(o.Name, o.Point)
}

// SelectionKey builds a selection identity. Line markets include the point so
// "Over 2.5" and "Over 1.5" never collapse into one selection. Whole lines keep
// one decimal place: 2 is written as "2.0".
func SelectionKey(name string, point *float64) string {
	sel := strings.ToUpper(strings.TrimSpace(name))
	if point == nil {
		return sel
	}
	p := strconv.FormatFloat(*point, 'f', -1, 64)
	if !strings.Contains(p, ".") {
		p += ".0"
	}
	return sel + "_" + p
}

// -----------------------------------------------------------------------------
// Persisted records
// -----------------------------------------------------------------------------

// Partition identifies the (league, fixture) storage unit.
type Partition struct {
	League    string
	FixtureID string
}

func (p Partition) String() string {
	return fmt.Sprintf("league=%s/fixture=%s", p.League, p.FixtureID)
}

// Snapshot is one price observation from one poll. Append-only.
type Snapshot struct {
	SchemaVersion string    `json:"schema_version"`
	RunID         string    `json:"run_id,omitempty"`
	FixtureID     string    `json:"fixture_id"`
	League        string    `json:"league"`
	Bookmaker     string    `json:"bookmaker"`
	Market        string    `json:"market"`
	Selection     string    `json:"selection"`
	Price         float64   `json:"price"`
	CapturedAt    time.Time `json:"captured_at"`
	OffsetBucket  string    `json:"offset_bucket"`
	DedupKey      string    `json:"dedup_key,omitempty"`
}

// Partition returns the storage partition of the snapshot.
func (s Snapshot) Partition() Partition {
	return Partition{League: s.League, FixtureID: s.FixtureID}
}

// Validate checks the fields that make up the dedup key and the price.
func (s Snapshot) Validate() error {
	switch {
	case s.FixtureID == "":
		return &ValidationError{Field: "fixture_id", Reason: "missing"}
	case !ValidID(s.FixtureID):
		return &ValidationError{Field: "fixture_id", Reason: fmt.Sprintf("invalid id %q", s.FixtureID)}
	case s.League == "":
		return &ValidationError{Field: "league", Reason: "missing", Record: s.FixtureID}
	case !ValidID(s.League):
		return &ValidationError{Field: "league", Reason: fmt.Sprintf("invalid id %q", s.League), Record: s.FixtureID}
	case s.Bookmaker == "":
		return &ValidationError{Field: "bookmaker", Reason: "missing", Record: s.FixtureID}
	case s.Market == "":
		return &ValidationError{Field: "market", Reason: "missing", Record: s.FixtureID}
	case s.Selection == "":
		return &ValidationError{Field: "selection", Reason: "missing", Record: s.FixtureID}
	case s.OffsetBucket == "":
		return &ValidationError{Field: "offset_bucket", Reason: "missing", Record: s.FixtureID}
	case s.CapturedAt.IsZero():
		return &ValidationError{Field: "captured_at", Reason: "missing", Record: s.FixtureID}
	case !ValidPrice(s.Price):
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("invalid decimal price %v", s.Price), Record: s.FixtureID}
	}
	return nil
}

// FixtureMeta is written once per partition alongside the snapshots.
type FixtureMeta struct {
	FixtureID  string    `json:"fixture_id"`
	League     string    `json:"league"`
	Home       string    `json:"home"`
	Away       string    `json:"away"`
	KickoffTS  int64     `json:"kickoff_ts"`
	KickoffUTC string    `json:"kickoff_utc"`
	CreatedAt  time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Derived records
// -----------------------------------------------------------------------------

// PricePair holds the opening and current price of one selection.
// Opening is nil when the selection was absent from the opening snapshot.
type PricePair struct {
	Opening *float64 `json:"opening"`
	Current *float64 `json:"current"`
}

// MarketBook maps market -> bookmaker -> selection -> prices.
type MarketBook map[string]map[string]map[string]PricePair

// CanonicalRecord is the reduced opening/current view of one fixture.
type CanonicalRecord struct {
	SchemaVersion string     `json:"schema_version"`
	League        string     `json:"league"`
	FixtureID     string     `json:"fixture_id"`
	OpeningTS     time.Time  `json:"opening_ts"`
	CurrentTS     time.Time  `json:"current_ts"`
	Markets       MarketBook `json:"markets"`
}

// DeviationEvent is one significant price movement.
type DeviationEvent struct {
	FixtureID string  `json:"fixture_id"`
	League    string  `json:"league"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Bookmaker string  `json:"bookmaker"`
	Opening   float64 `json:"opening"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	AbsDelta  float64 `json:"abs_delta"`
}

// Radar is the ranked deviation document.
type Radar struct {
	SchemaVersion string           `json:"schema_version"`
	RunID         string           `json:"run_id,omitempty"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Items         []DeviationEvent `json:"items"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ValidID reports whether id is safe to use as a league or fixture path segment.
func ValidID(id string) bool {
	return id != "." && id != ".." && idPattern.MatchString(id)
}

// ValidPrice reports whether p is a usable decimal price.
func ValidPrice(p float64) bool {
	return p > 1.0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
