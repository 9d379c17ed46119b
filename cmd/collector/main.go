package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/rickgao/odds-history/internal/api"
	"github.com/rickgao/odds-history/internal/bucket"
	"github.com/rickgao/odds-history/internal/canonical"
	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/database"
	"github.com/rickgao/odds-history/internal/deviation"
	"github.com/rickgao/odds-history/internal/fixture"
	"github.com/rickgao/odds-history/internal/matcher"
	"github.com/rickgao/odds-history/internal/metrics"
	"github.com/rickgao/odds-history/internal/pipeline"
	"github.com/rickgao/odds-history/internal/poller"
	"github.com/rickgao/odds-history/internal/publish"
	"github.com/rickgao/odds-history/internal/store"
	"github.com/rickgao/odds-history/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single pass and exit, ignoring collector.schedule")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		version.Attr(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
		"leagues", len(cfg.Leagues),
		"backend", cfg.Storage.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsHandler(cfg.Metrics.Path, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	snapshots, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sinks, err := publish.Open(ctx, cfg.Publish, m, logger)
	if err != nil {
		logger.Error("failed to open radar sinks", "error", err)
		os.Exit(1)
	}
	defer sinks.Close()

	runner := newRunner(cfg, snapshots, sinks, m, logger)

	if *once || cfg.Collector.Schedule == "" {
		if _, err := runner.Run(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cronLog := cronLogger{logger: logger.With("component", "scheduler")}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(cfg.Collector.Schedule, func() {
		if _, err := runner.Run(ctx); err != nil {
			logger.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid collector.schedule", "schedule", cfg.Collector.Schedule, "error", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("scheduler started", "schedule", cfg.Collector.Schedule)

	<-ctx.Done()
	logger.Info("shutting down, waiting for the running pass")
	<-c.Stop().Done()
	logger.Info("collector stopped")
}

// openStore opens the configured snapshot backend. The returned func
// releases its resources.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Storage.Backend != config.BackendPostgres {
		return store.NewFileStore(cfg.Storage.RootDir, logger), func() {}, nil
	}

	pg := cfg.Database.Postgres
	logger.Info("connecting to database", "host", pg.Host, "port", pg.Port, "database", pg.Name)
	pool, err := database.Connect(ctx, pg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("database connected")
	return store.NewPostgresStore(pool, logger), pool.Close, nil
}

func newRunner(cfg *config.Config, snapshots store.Store, sinks *publish.Multi, m *metrics.Metrics, logger *slog.Logger) *pipeline.Runner {
	client := api.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Provider.Timeout),
		api.WithRetries(cfg.Provider.MaxRetries, time.Second),
		api.WithQuotaHook(func(q api.Quota) { m.RecordQuota(q.Remaining, q.Used) }),
	)

	p := poller.New(poller.Config{
		Leagues: cfg.Leagues,
		Odds: api.OddsOptions{
			Regions:    cfg.Provider.Regions,
			Markets:    cfg.Provider.Markets,
			Bookmakers: cfg.Provider.Bookmakers,
			OddsFormat: cfg.Provider.OddsFormat,
		},
		TotalsPoints: cfg.Collector.TotalsPoints,
		Concurrency:  cfg.Collector.Concurrency,
		Timeout:      cfg.Provider.Timeout,
	},
		client,
		matcher.New(cfg.Matcher.KickoffTolerance, cfg.Matcher.MinConfidence),
		bucket.NewResolver(cfg.Collector.OffsetsMin, cfg.Collector.ToleranceMin),
		snapshots,
		m,
		logger,
	)

	return pipeline.New(pipeline.Config{
		Leagues:      cfg.LeagueIDs(),
		RootDir:      cfg.Storage.RootDir,
		WindowPast:   cfg.Collector.WindowPast,
		WindowFuture: cfg.Collector.WindowFuture,
		CacheTTL:     cfg.Collector.CacheTTL,
		RunTimeout:   cfg.Collector.RunTimeout,
		Concurrency:  cfg.Collector.Concurrency,
	},
		fixture.NewFileRegistry(cfg.Storage.FixturesDir, logger),
		p,
		snapshots,
		canonical.New(snapshots, cfg.Storage.RootDir, logger),
		deviation.New(cfg.Deviation.Thresholds, cfg.Deviation.Bookmakers),
		sinks,
		m,
		logger,
	)
}

func metricsHandler(path string, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, version.Version)
	})
	return mux
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
