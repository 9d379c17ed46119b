package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"epl", []string{"epl"}},
		{"epl, laliga ,", []string{"epl", "laliga"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	leagueDir := filepath.Join(dir, "league=epl")
	if err := os.MkdirAll(leagueDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `[{"fixture_id":"f1","home":"Arsenal","away":"Chelsea","kickoff_ts":` + strconv.FormatInt(kickoff.Unix(), 10) + `}]`
	path := filepath.Join(leagueDir, "date="+kickoff.Format("2006-01-02")+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "report.json")
	ok, err := run("", dir, "epl", 24*time.Hour, 7*24*time.Hour, out)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !ok {
		t.Error("run() ok = false, want true")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var report struct {
		OK     bool `json:"ok"`
		Totals struct {
			Fixtures int `json:"fixtures"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.OK || report.Totals.Fixtures != 1 {
		t.Errorf("report = %+v, want ok with 1 fixture", report)
	}
}

func TestRunFlagsDuplicates(t *testing.T) {
	dir := t.TempDir()
	kickoff := time.Now().UTC().Add(6 * time.Hour)
	leagueDir := filepath.Join(dir, "league=epl")
	if err := os.MkdirAll(leagueDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ts := strconv.FormatInt(kickoff.Unix(), 10)
	body := `[{"fixture_id":"f1","home":"A","away":"B","kickoff_ts":` + ts + `},{"fixture_id":"f1","home":"C","away":"D","kickoff_ts":` + ts + `}]`
	path := filepath.Join(leagueDir, "date="+kickoff.Format("2006-01-02")+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := run("", dir, "epl", 24*time.Hour, 7*24*time.Hour, filepath.Join(t.TempDir(), "r.json"))
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ok {
		t.Error("run() ok = true, want false for duplicate fixture ids")
	}
}
