package poller

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/odds-history/internal/api"
	"github.com/rickgao/odds-history/internal/bucket"
	"github.com/rickgao/odds-history/internal/matcher"
	"github.com/rickgao/odds-history/internal/metrics"
	"github.com/rickgao/odds-history/internal/model"
)

// OddsFetcher fetches a league's events. *api.Client implements it.
type OddsFetcher interface {
	GetOdds(ctx context.Context, sportKey string, opts api.OddsOptions) ([]model.ProviderEvent, error)
}

// SnapshotStore receives extracted snapshots. store.Store implements it.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, s model.Snapshot) (bool, error)
	EnsureMeta(ctx context.Context, f model.Fixture) error
}

// Config holds poller configuration.
type Config struct {
	Leagues      map[string]string // league id -> provider sport key
	Odds         api.OddsOptions   // provider query; Markets and Bookmakers also filter locally
	TotalsPoints []float64         // totals lines kept; empty keeps all
	Concurrency  int               // leagues fetched in parallel (default: 4)
	Timeout      time.Duration     // per league fetch (default: 20s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Odds: api.OddsOptions{
			Regions:    []string{"eu"},
			Markets:    []string{"h2h", "totals"},
			OddsFormat: "decimal",
		},
		TotalsPoints: []float64{1.5, 2.5, 3.5},
		Concurrency:  4,
		Timeout:      20 * time.Second,
	}
}

// Run identifies one collection pass.
type Run struct {
	ID         string
	CapturedAt time.Time    // shared by every snapshot of the run
	Cache      *LeagueCache // run-scoped; never shared across runs
}

// Stats summarizes a pass.
type Stats struct {
	Leagues       int
	LeaguesFailed int
	Fixtures      int
	OutOfBucket   int
	Matched       int
	Unmatched     int
	Stored        int
	Duplicates    int
	Conflicts     int
	Invalid       int
	Errors        int
}

type counters struct {
	leagues       atomic.Int64
	leaguesFailed atomic.Int64
	fixtures      atomic.Int64
	outOfBucket   atomic.Int64
	matched       atomic.Int64
	unmatched     atomic.Int64
	stored        atomic.Int64
	duplicates    atomic.Int64
	conflicts     atomic.Int64
	invalid       atomic.Int64
	errors        atomic.Int64
}

func (c *counters) stats() Stats {
	return Stats{
		Leagues:       int(c.leagues.Load()),
		LeaguesFailed: int(c.leaguesFailed.Load()),
		Fixtures:      int(c.fixtures.Load()),
		OutOfBucket:   int(c.outOfBucket.Load()),
		Matched:       int(c.matched.Load()),
		Unmatched:     int(c.unmatched.Load()),
		Stored:        int(c.stored.Load()),
		Duplicates:    int(c.duplicates.Load()),
		Conflicts:     int(c.conflicts.Load()),
		Invalid:       int(c.invalid.Load()),
		Errors:        int(c.errors.Load()),
	}
}

// Poller runs collection passes.
type Poller struct {
	cfg     Config
	fetcher OddsFetcher
	matcher *matcher.Matcher
	buckets *bucket.Resolver
	store   SnapshotStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new Poller. metrics may be nil.
func New(cfg Config, fetcher OddsFetcher, m *matcher.Matcher, buckets *bucket.Resolver, store SnapshotStore, mt *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		matcher: m,
		buckets: buckets,
		store:   store,
		metrics: mt,
		logger:  logger,
	}
}

// Poll performs one pass over fixtures. League and record failures are
// logged and counted; only cancellation of ctx is returned as an error.
func (p *Poller) Poll(ctx context.Context, run Run, fixtures []model.Fixture) (Stats, error) {
	start := time.Now()
	if run.Cache == nil {
		run.Cache = NewLeagueCache(DefaultCacheTTL)
	}

	byLeague := make(map[string][]model.Fixture)
	for _, f := range fixtures {
		byLeague[f.League] = append(byLeague[f.League], f)
	}
	leagues := make([]string, 0, len(byLeague))
	for l := range byLeague {
		leagues = append(leagues, l)
	}
	sort.Strings(leagues)

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, league := range leagues {
		league := league
		g.Go(func() error {
			p.pollLeague(gctx, run, league, byLeague[league], &c)
			return nil
		})
	}
	_ = g.Wait()

	stats := c.stats()
	p.logger.Info("poll cycle complete",
		"run_id", run.ID,
		"leagues", stats.Leagues,
		"leagues_failed", stats.LeaguesFailed,
		"fixtures", stats.Fixtures,
		"matched", stats.Matched,
		"stored", stats.Stored,
		"duplicates", stats.Duplicates,
		"conflicts", stats.Conflicts,
		"duration", time.Since(start),
	)

	return stats, ctx.Err()
}

// pollLeague fetches one league and records snapshots for its fixtures.
func (p *Poller) pollLeague(ctx context.Context, run Run, league string, fixtures []model.Fixture, c *counters) {
	c.leagues.Add(1)
	c.fixtures.Add(int64(len(fixtures)))

	type due struct {
		fixture model.Fixture
		bucket  string
	}
	var pending []due
	for _, f := range fixtures {
		label, ok := p.buckets.Resolve(f.Kickoff(), run.CapturedAt)
		if !ok {
			c.outOfBucket.Add(1)
			continue
		}
		pending = append(pending, due{f, label})
	}
	if len(pending) == 0 {
		p.logger.Debug("no fixtures in a snapshot bucket", "league", league)
		return
	}

	sportKey, ok := p.cfg.Leagues[league]
	if !ok {
		p.logger.Warn("no provider sport key for league", "league", league)
		c.leaguesFailed.Add(1)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	events, hit, err := run.Cache.Get(fetchCtx, league, func(ctx context.Context) ([]model.ProviderEvent, error) {
		return p.fetcher.GetOdds(ctx, sportKey, p.cfg.Odds)
	})
	p.metrics.RecordCacheLookup(hit)
	if err != nil {
		c.leaguesFailed.Add(1)
		p.metrics.RecordLeagueFetch(league, "error")
		p.logger.Warn("league fetch failed, skipping league for this run",
			"run_id", run.ID,
			"league", league,
			"transient", api.IsTransient(err),
			"fixtures", len(pending),
			"error", err,
		)
		return
	}
	p.metrics.RecordLeagueFetch(league, "ok")

	for _, d := range pending {
		if ctx.Err() != nil {
			return
		}
		res := p.matcher.Match(d.fixture, events)
		p.metrics.RecordMatch(league, res.Found)
		if !res.Found {
			c.unmatched.Add(1)
			p.logger.Debug("no odds available for fixture",
				"league", league,
				"fixture_id", d.fixture.FixtureID,
				"confidence", res.Confidence,
			)
			continue
		}
		c.matched.Add(1)

		if err := p.store.EnsureMeta(ctx, d.fixture); err != nil {
			p.logger.Warn("write fixture meta failed", "partition", d.fixture.Partition().String(), "error", err)
		}

		for _, snap := range Extract(res.Event, d.fixture, p.cfg, run, d.bucket) {
			p.record(ctx, snap, c)
		}
	}
}

// record writes one snapshot and classifies the outcome.
func (p *Poller) record(ctx context.Context, snap model.Snapshot, c *counters) {
	stored, err := p.store.RecordSnapshot(ctx, snap)

	var integrity *model.DataIntegrityError
	var invalid *model.ValidationError
	switch {
	case err == nil && stored:
		c.stored.Add(1)
		p.metrics.RecordSnapshot(metrics.SnapshotStored)
	case err == nil:
		c.duplicates.Add(1)
		p.metrics.RecordSnapshot(metrics.SnapshotDuplicate)
	case errors.As(err, &integrity):
		c.conflicts.Add(1)
		p.metrics.RecordSnapshot(metrics.SnapshotConflict)
		p.logger.Warn("snapshot conflicts with stored record",
			"partition", integrity.Partition.String(),
			"bookmaker", snap.Bookmaker,
			"market", snap.Market,
			"selection", snap.Selection,
			"offset_bucket", snap.OffsetBucket,
			"stored_price", integrity.StoredPrice,
			"new_price", integrity.NewPrice,
		)
	case errors.As(err, &invalid):
		c.invalid.Add(1)
		p.metrics.RecordSnapshot(metrics.SnapshotInvalid)
		p.logger.Warn("skipping invalid snapshot",
			"partition", snap.Partition().String(),
			"bookmaker", snap.Bookmaker,
			"selection", snap.Selection,
			"error", err,
		)
	default:
		c.errors.Add(1)
		p.metrics.RecordSnapshot(metrics.SnapshotError)
		p.logger.Error("record snapshot failed",
			"partition", snap.Partition().String(),
			"error", err,
		)
	}
}

// Extract turns a matched event into snapshots, applying the bookmaker and
// market allow-lists and the totals line filter.
func Extract(ev model.ProviderEvent, f model.Fixture, cfg Config, run Run, offsetBucket string) []model.Snapshot {
	var out []model.Snapshot
	for _, bm := range ev.Bookmakers {
		if len(cfg.Odds.Bookmakers) > 0 && !slices.Contains(cfg.Odds.Bookmakers, bm.Key) {
			continue
		}
		for _, m := range bm.Markets {
			if len(cfg.Odds.Markets) > 0 && !slices.Contains(cfg.Odds.Markets, m.Key) {
				continue
			}
			for _, o := range m.Outcomes {
				if m.Key == "totals" && len(cfg.TotalsPoints) > 0 {
					if o.Point == nil || !slices.Contains(cfg.TotalsPoints, *o.Point) {
						continue
					}
				}
				out = append(out, model.Snapshot{
					SchemaVersion: model.SnapshotSchemaVersion,
					RunID:         run.ID,
					FixtureID:     f.FixtureID,
					League:        f.League,
					Bookmaker:     bm.Key,
					Market:        m.Key,
					Selection:     o.Selection(),
					Price:         o.Price,
					CapturedAt:    run.CapturedAt,
					OffsetBucket:  offsetBucket,
				})
			}
		}
	}
	return out
}
