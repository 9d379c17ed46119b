package deviation

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/odds-history/internal/model"
)

func p(v float64) *float64 { return &v }

func record(fixture string, markets model.MarketBook) model.CanonicalRecord {
	return model.CanonicalRecord{
		SchemaVersion: model.CanonicalSchemaVersion,
		League:        "ENG1",
		FixtureID:     fixture,
		Markets:       markets,
	}
}

func TestScan_Thresholds(t *testing.T) {
	e := New(DefaultThresholds, nil)

	totals := record("fx-totals", model.MarketBook{
		"totals": {"pinnacle": {"OVER_2.5": {Opening: p(1.80), Current: p(2.10)}}},
	})
	h2hSmall := record("fx-h2h", model.MarketBook{
		"h2h": {"pinnacle": {"HOME": {Opening: p(1.80), Current: p(1.95)}}},
	})

	got := e.Scan([]model.CanonicalRecord{totals, h2hSmall})
	if len(got) != 1 {
		t.Fatalf("len(Scan) = %d, want 1", len(got))
	}
	ev := got[0]
	if ev.FixtureID != "fx-totals" || ev.Selection != "OVER_2.5" {
		t.Errorf("event = %+v, want fx-totals OVER_2.5", ev)
	}
	if ev.Delta != 0.3 || ev.AbsDelta != 0.3 {
		t.Errorf("delta = (%v, %v), want (0.3, 0.3)", ev.Delta, ev.AbsDelta)
	}
	if ev.Opening != 1.80 || ev.Current != 2.10 {
		t.Errorf("prices = (%v, %v), want (1.8, 2.1)", ev.Opening, ev.Current)
	}
}

func TestScan_ExactThresholdQualifies(t *testing.T) {
	// 2.00 - 1.80 is 0.19999999999999996 in float64 but exactly 0.20 in decimal.
	e := New(DefaultThresholds, nil)
	got := e.Scan([]model.CanonicalRecord{record("fx-1", model.MarketBook{
		"h2h": {"pinnacle": {"AWAY": {Opening: p(1.80), Current: p(2.00)}}},
	})})
	if len(got) != 1 {
		t.Fatalf("len(Scan) = %d, want 1", len(got))
	}
	if got[0].AbsDelta != 0.2 {
		t.Errorf("AbsDelta = %v, want 0.2", got[0].AbsDelta)
	}
}

func TestScan_OneEventPerFixture(t *testing.T) {
	e := New(DefaultThresholds, nil)
	got := e.Scan([]model.CanonicalRecord{record("fx-1", model.MarketBook{
		"totals": {"pinnacle": {
			"OVER_2.5":  {Opening: p(1.80), Current: p(2.10)},
			"UNDER_2.5": {Opening: p(2.05), Current: p(1.60)},
		}},
	})})
	if len(got) != 1 {
		t.Fatalf("len(Scan) = %d, want 1", len(got))
	}
	if got[0].Selection != "UNDER_2.5" || got[0].AbsDelta != 0.45 || got[0].Delta != -0.45 {
		t.Errorf("event = %+v, want UNDER_2.5 delta -0.45", got[0])
	}
}

func TestScan_SortedAcrossFixtures(t *testing.T) {
	e := New(DefaultThresholds, nil)
	recs := []model.CanonicalRecord{
		record("small", model.MarketBook{"totals": {"b": {"OVER_2.5": {Opening: p(1.80), Current: p(1.95)}}}}),
		record("large", model.MarketBook{"h2h": {"b": {"HOME": {Opening: p(2.00), Current: p(3.00)}}}}),
		record("tie-a", model.MarketBook{"totals": {"b": {"OVER_2.5": {Opening: p(1.80), Current: p(2.10)}}}}),
		record("tie-b", model.MarketBook{"totals": {"b": {"UNDER_2.5": {Opening: p(2.10), Current: p(1.80)}}}}),
	}
	got := e.Scan(recs)

	want := []string{"large", "tie-a", "tie-b", "small"}
	if len(got) != len(want) {
		t.Fatalf("len(Scan) = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].FixtureID != id {
			t.Errorf("Scan()[%d] = %s, want %s", i, got[i].FixtureID, id)
		}
	}
}

func TestScan_SkipsMissingOpeningAndUnknownMarkets(t *testing.T) {
	e := New(DefaultThresholds, nil)
	got := e.Scan([]model.CanonicalRecord{record("fx-1", model.MarketBook{
		"h2h":     {"pinnacle": {"DRAW": {Opening: nil, Current: p(9.0)}}},
		"spreads": {"pinnacle": {"HOME_-1": {Opening: p(1.5), Current: p(3.0)}}},
	})})
	if len(got) != 0 {
		t.Errorf("Scan() = %+v, want empty", got)
	}
}

func TestScan_BookmakerAllowList(t *testing.T) {
	e := New(DefaultThresholds, []string{"pinnacle"})
	got := e.Scan([]model.CanonicalRecord{record("fx-1", model.MarketBook{
		"h2h": {
			"unibet":   {"HOME": {Opening: p(1.50), Current: p(2.50)}},
			"pinnacle": {"HOME": {Opening: p(1.50), Current: p(1.80)}},
		},
	})})
	if len(got) != 1 || got[0].Bookmaker != "pinnacle" {
		t.Errorf("Scan() = %+v, want single pinnacle event", got)
	}
}

func TestScan_FirstWinsOnEqualMoves(t *testing.T) {
	e := New(DefaultThresholds, nil)
	got := e.Scan([]model.CanonicalRecord{record("fx-1", model.MarketBook{
		"h2h": {"pinnacle": {
			"HOME": {Opening: p(2.00), Current: p(2.50)},
			"AWAY": {Opening: p(3.00), Current: p(2.50)},
		}},
	})})
	if len(got) != 1 || got[0].Selection != "AWAY" {
		t.Errorf("Scan() = %+v, want AWAY (first in key order)", got)
	}
}

func TestWriteAndReadRadar(t *testing.T) {
	root := t.TempDir()
	radar := model.Radar{
		RunID:       "run-1",
		GeneratedAt: time.Date(2025, 10, 19, 15, 0, 0, 0, time.UTC),
	}
	if err := WriteRadar(root, radar); err != nil {
		t.Fatalf("WriteRadar failed: %v", err)
	}

	data, err := os.ReadFile(RadarPath(root))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"items": []`) {
		t.Errorf("empty radar should encode items as [], got %s", data)
	}

	back, err := ReadRadar(root)
	if err != nil {
		t.Fatalf("ReadRadar failed: %v", err)
	}
	if back.SchemaVersion != model.RadarSchemaVersion || back.RunID != "run-1" {
		t.Errorf("radar = %+v, want schema %s run-1", back, model.RadarSchemaVersion)
	}
}
