// Command fixturecheck validates the fixture registry and prints a JSON
// report. It exits 1 when the report contains CRITICAL issues and 2 when the
// registry cannot be read.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/fixture"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	dir := flag.String("dir", "", "fixture registry directory (overrides storage.fixtures_dir)")
	leagues := flag.String("leagues", "", "comma separated league ids (default: leagues in config)")
	past := flag.Duration("past", 24*time.Hour, "oldest allowed kickoff before now")
	future := flag.Duration("future", 7*24*time.Hour, "latest allowed kickoff after now")
	out := flag.String("out", "", "write the report to this file instead of stdout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ok, err := run(*configPath, *dir, *leagues, *past, *future, *out)
	if err != nil {
		logger.Error("fixture check failed", "error", err)
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

// run validates the registry and writes the report. ok mirrors report.OK.
func run(configPath, dir, leagueList string, past, future time.Duration, out string) (bool, error) {
	var allowed []string
	if dir == "" || leagueList == "" {
		cfg, err := config.LoadWithDefaults(configPath)
		if err != nil {
			return false, err
		}
		if dir == "" {
			dir = cfg.Storage.FixturesDir
		}
		allowed = cfg.LeagueIDs()
	}
	if leagueList != "" {
		allowed = splitList(leagueList)
	}

	registry := fixture.NewFileRegistry(dir, slog.Default())
	report, err := registry.Validate(context.Background(), fixture.ValidateOptions{
		Leagues:     allowed,
		Now:         time.Now().UTC(),
		PastLimit:   past,
		FutureLimit: future,
	})
	if err != nil {
		return false, err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return false, fmt.Errorf("write report: %w", err)
		}
	} else {
		os.Stdout.Write(data)
	}

	slog.Info("fixture check complete",
		"ok", report.OK,
		"files", report.Totals.Files,
		"fixtures", report.Totals.Fixtures,
		"issues", len(report.Issues),
	)
	return report.OK, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
