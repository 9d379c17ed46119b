package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "odds"

// Snapshot write outcomes.
const (
	SnapshotStored    = "stored"
	SnapshotDuplicate = "duplicate"
	SnapshotConflict  = "conflict"
	SnapshotInvalid   = "invalid"
	SnapshotError     = "error"
)

// Metrics contains all Prometheus metrics for the collector.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LeagueFetches   *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	QuotaRemaining  prometheus.Gauge
	QuotaUsed       prometheus.Gauge
	FixturesMatched *prometheus.CounterVec
	SnapshotWrites  *prometheus.CounterVec
	CanonicalWrites *prometheus.CounterVec
	RadarItems      prometheus.Gauge
	PublishErrors   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"status"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		LeagueFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "league_fetches_total",
			Help:      "Provider league fetches by league and outcome",
		}, []string{"league", "status"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "league_cache_lookups_total",
			Help:      "League cache lookups by result",
		}, []string{"result"}),

		QuotaRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_requests_remaining",
			Help:      "Provider request quota remaining, from the last response",
		}),

		QuotaUsed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_requests_used",
			Help:      "Provider requests used, from the last response",
		}),

		FixturesMatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixtures_matched_total",
			Help:      "Fixture match attempts by league and result",
		}, []string{"league", "result"}),

		SnapshotWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Snapshot write attempts by outcome",
		}, []string{"result"}),

		CanonicalWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "canonical_records_total",
			Help:      "Canonical record builds by outcome",
		}, []string{"result"}),

		RadarItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "radar_items",
			Help:      "Items in the most recent radar",
		}),

		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Radar publish failures by sink",
		}, []string{"sink"}),
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
}

// RecordLeagueFetch records one provider fetch for a league.
func (m *Metrics) RecordLeagueFetch(league, status string) {
	if m == nil {
		return
	}
	m.LeagueFetches.WithLabelValues(league, status).Inc()
}

// RecordCacheLookup records a league cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordQuota records the provider quota headers.
func (m *Metrics) RecordQuota(remaining, used int) {
	if m == nil {
		return
	}
	m.QuotaRemaining.Set(float64(remaining))
	m.QuotaUsed.Set(float64(used))
}

// RecordMatch records one fixture match attempt.
func (m *Metrics) RecordMatch(league string, found bool) {
	if m == nil {
		return
	}
	result := "unmatched"
	if found {
		result = "matched"
	}
	m.FixturesMatched.WithLabelValues(league, result).Inc()
}

// RecordSnapshot records one snapshot write outcome.
func (m *Metrics) RecordSnapshot(result string) {
	if m == nil {
		return
	}
	m.SnapshotWrites.WithLabelValues(result).Inc()
}

// RecordCanonical records one canonical build outcome (written, unchanged, skipped, error).
func (m *Metrics) RecordCanonical(result string) {
	if m == nil {
		return
	}
	m.CanonicalWrites.WithLabelValues(result).Inc()
}

// RecordRadar records the size of the latest radar.
func (m *Metrics) RecordRadar(items int) {
	if m == nil {
		return
	}
	m.RadarItems.Set(float64(items))
}

// RecordPublishError records a failed publish to sink.
func (m *Metrics) RecordPublishError(sink string) {
	if m == nil {
		return
	}
	m.PublishErrors.WithLabelValues(sink).Inc()
}
