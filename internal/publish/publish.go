package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/metrics"
	"github.com/rickgao/odds-history/internal/model"
)

// Publisher delivers a radar to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, radar model.Radar) error
	Close() error
}

// Multi fans a radar out to every publisher. One failing sink does not
// stop the others; their errors are joined.
type Multi struct {
	publishers []Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewMulti creates a Multi. metrics may be nil.
func NewMulti(m *metrics.Metrics, logger *slog.Logger, publishers ...Publisher) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{publishers: publishers, metrics: m, logger: logger}
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.publishers)
}

// Publish sends radar to every sink.
func (m *Multi) Publish(ctx context.Context, radar model.Radar) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, radar); err != nil {
			m.metrics.RecordPublishError(p.Name())
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		m.logger.Debug("radar published", "sink", p.Name(), "items", len(radar.Items))
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Open connects the sinks enabled in cfg. Sinks opened before a failure
// are closed again.
func Open(ctx context.Context, cfg config.PublishConfig, m *metrics.Metrics, logger *slog.Logger) (*Multi, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var pubs []Publisher
	fail := func(err error) (*Multi, error) {
		_ = NewMulti(nil, logger, pubs...).Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		p, err := DialRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
	}
	if cfg.AMQP.Enabled {
		p, err := DialAMQP(cfg.AMQP, logger)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
	}
	if cfg.Telegram.Enabled {
		p, err := NewTelegramBot(cfg.Telegram, logger)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
	}

	logger.Info("radar sinks ready", "count", len(pubs))
	return NewMulti(m, logger, pubs...), nil
}

// byLeague splits radar items by league, preserving rank order.
func byLeague(radar model.Radar) map[string][]model.DeviationEvent {
	out := make(map[string][]model.DeviationEvent)
	for _, item := range radar.Items {
		out[item.League] = append(out[item.League], item)
	}
	return out
}

func leagueNames(groups map[string][]model.DeviationEvent) []string {
	names := make([]string, 0, len(groups))
	for l := range groups {
		names = append(names, l)
	}
	sort.Strings(names)
	return names
}

// leagueRadar returns the radar restricted to one league's items.
func leagueRadar(radar model.Radar, items []model.DeviationEvent) model.Radar {
	out := radar
	out.Items = items
	return out
}
