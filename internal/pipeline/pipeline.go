package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/odds-history/internal/canonical"
	"github.com/rickgao/odds-history/internal/deviation"
	"github.com/rickgao/odds-history/internal/fixture"
	"github.com/rickgao/odds-history/internal/metrics"
	"github.com/rickgao/odds-history/internal/model"
	"github.com/rickgao/odds-history/internal/poller"
)

// Run statuses recorded in metrics.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// FixtureSource loads the fixtures eligible for a run.
type FixtureSource interface {
	Load(ctx context.Context, leagues []string, w fixture.Window) ([]model.Fixture, error)
}

// SnapshotPoller records snapshots for a set of fixtures.
type SnapshotPoller interface {
	Poll(ctx context.Context, run poller.Run, fixtures []model.Fixture) (poller.Stats, error)
}

// PartitionLister lists stored partitions.
type PartitionLister interface {
	Partitions(ctx context.Context) ([]model.Partition, error)
}

// Publisher delivers the radar to an external sink. publish.Multi implements it.
type Publisher interface {
	Publish(ctx context.Context, radar model.Radar) error
}

// Config holds runner settings.
type Config struct {
	Leagues      []string
	RootDir      string // radar.json is written below it
	WindowPast   time.Duration
	WindowFuture time.Duration
	CacheTTL     time.Duration
	RunTimeout   time.Duration // 0 = no deadline
	Concurrency  int           // canonical rebuild fan-out
}

// RunReport summarizes one run.
type RunReport struct {
	RunID          string
	StartedAt      time.Time
	Duration       time.Duration
	Fixtures       int
	Poll           poller.Stats
	Partitions     int
	CanonicalWrote int
	RadarItems     int
	Published      bool
	TimedOut       bool
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg        Config
	fixtures   FixtureSource
	poller     SnapshotPoller
	partitions PartitionLister
	canon      *canonical.Canonicalizer
	engine     *deviation.Engine
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	now func() time.Time
}

// New creates a Runner. publisher and metrics may be nil.
func New(cfg Config, fixtures FixtureSource, p SnapshotPoller, partitions PartitionLister,
	canon *canonical.Canonicalizer, engine *deviation.Engine, publisher Publisher,
	m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &Runner{
		cfg:        cfg,
		fixtures:   fixtures,
		poller:     p,
		partitions: partitions,
		canon:      canon,
		engine:     engine,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one pass. Snapshot writes are committed individually, so a
// run that hits its deadline still leaves a consistent partial state; the
// canonical and radar stages then run on whatever was stored.
func (r *Runner) Run(ctx context.Context) (report RunReport, err error) {
	start := r.now().UTC()
	report = RunReport{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("run starting", "leagues", len(r.cfg.Leagues))

	status := StatusFailed
	defer func() {
		report.Duration = r.now().Sub(start)
		r.metrics.RecordRun(status, report.Duration.Seconds())
	}()

	pollCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	window := fixture.Window{Now: start, Past: r.cfg.WindowPast, Future: r.cfg.WindowFuture}
	fixtures, err := r.fixtures.Load(pollCtx, r.cfg.Leagues, window)
	if err != nil {
		return report, fmt.Errorf("load fixtures: %w", err)
	}
	report.Fixtures = len(fixtures)

	run := poller.Run{
		ID:         report.RunID,
		CapturedAt: start.Truncate(time.Second),
		Cache:      poller.NewLeagueCache(r.cfg.CacheTTL),
	}
	stats, err := r.poller.Poll(pollCtx, run, fixtures)
	report.Poll = stats
	if err != nil {
		if ctx.Err() != nil {
			return report, fmt.Errorf("poll: %w", err)
		}
		report.TimedOut = true
		logger.Warn("run deadline reached during poll, continuing with stored snapshots", "error", err)
	}

	records, err := r.rebuildCanonical(ctx, &report)
	if err != nil {
		return report, err
	}

	radar := model.Radar{
		RunID:       report.RunID,
		GeneratedAt: r.now().UTC().Truncate(time.Second),
		Items:       r.engine.Scan(records),
	}
	if err := deviation.WriteRadar(r.cfg.RootDir, radar); err != nil {
		return report, fmt.Errorf("write radar: %w", err)
	}
	report.RadarItems = len(radar.Items)
	r.metrics.RecordRadar(report.RadarItems)

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, radar); err != nil {
			logger.Warn("publish radar failed", "error", err)
		} else {
			report.Published = true
		}
	}

	status = StatusOK
	if report.TimedOut || stats.LeaguesFailed > 0 {
		status = StatusPartial
	}
	logger.Info("run complete",
		"status", status,
		"fixtures", report.Fixtures,
		"stored", stats.Stored,
		"partitions", report.Partitions,
		"canonical_written", report.CanonicalWrote,
		"radar_items", report.RadarItems,
		"duration", r.now().Sub(start),
	)
	return report, nil
}

// rebuildCanonical recomputes the canonical record of every stored partition
// and returns the records in partition order.
func (r *Runner) rebuildCanonical(ctx context.Context, report *RunReport) ([]model.CanonicalRecord, error) {
	parts, err := r.partitions.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	report.Partitions = len(parts)

	type result struct {
		rec     model.CanonicalRecord
		ok      bool
		written bool
	}
	results := make([]result, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			rec, ok, err := r.canon.Canonicalize(gctx, part.League, part.FixtureID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.metrics.RecordCanonical("error")
				r.logger.Warn("canonicalize failed",
					"partition", part.String(),
					"error", err,
				)
				return nil
			}
			if !ok {
				r.metrics.RecordCanonical("skipped")
				return nil
			}
			written, err := r.canon.Write(rec)
			if err != nil {
				r.metrics.RecordCanonical("error")
				return err
			}
			if written {
				r.metrics.RecordCanonical("written")
			} else {
				r.metrics.RecordCanonical("unchanged")
			}
			results[i] = result{rec: rec, ok: true, written: written}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]model.CanonicalRecord, 0, len(results))
	for _, res := range results {
		if !res.ok {
			continue
		}
		if res.written {
			report.CanonicalWrote++
		}
		records = append(records, res.rec)
	}
	return records, nil
}
