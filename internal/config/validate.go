package config

import (
	"errors"
	"fmt"
	"math"
)

// MinAcceptableConfidence is the strict lower bound for matcher.min_confidence.
// Any two of the three matcher signals score at most 0.75, so a threshold at or
// below it would accept a partial match.
const MinAcceptableConfidence = 0.75

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Storage.RootDir == "" {
		return errors.New("storage.root_dir is required")
	}
	switch c.Storage.Backend {
	case BackendFile:
	case BackendPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendPostgres, c.Storage.Backend)
	}

	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be > 0")
	}
	// A failed league is skipped until the next scheduled run.
	if c.Provider.MaxRetries != 0 {
		return fmt.Errorf("provider.max_retries must be 0, got %d", c.Provider.MaxRetries)
	}
	if len(c.Leagues) == 0 {
		return errors.New("leagues must not be empty")
	}
	for league, sport := range c.Leagues {
		if sport == "" {
			return fmt.Errorf("leagues.%s: sport key is required", league)
		}
	}

	if err := c.Collector.validate(); err != nil {
		return err
	}

	if c.Matcher.KickoffTolerance < 0 {
		return errors.New("matcher.kickoff_tolerance must be >= 0")
	}
	if c.Matcher.MinConfidence <= MinAcceptableConfidence || c.Matcher.MinConfidence > 1 {
		return fmt.Errorf("matcher.min_confidence must be in (%.2f, 1], got %v", MinAcceptableConfidence, c.Matcher.MinConfidence)
	}

	for market, th := range c.Deviation.Thresholds {
		if th <= 0 || math.IsNaN(th) || math.IsInf(th, 0) {
			return fmt.Errorf("deviation.thresholds.%s must be > 0, got %v", market, th)
		}
	}

	if err := c.Publish.validate(); err != nil {
		return err
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (c *CollectorConfig) validate() error {
	if c.WindowPast < 0 || c.WindowFuture <= 0 {
		return errors.New("collector.window_past must be >= 0 and collector.window_future > 0")
	}
	for _, off := range c.OffsetsMin {
		if off < 0 {
			return fmt.Errorf("collector.offsets_min must be >= 0, got %d", off)
		}
	}
	if c.ToleranceMin < 0 {
		return errors.New("collector.tolerance_min must be >= 0")
	}
	if c.CacheTTL <= 0 {
		return errors.New("collector.cache_ttl must be > 0")
	}
	if c.Concurrency < 1 {
		return errors.New("collector.concurrency must be >= 1")
	}
	if c.RunTimeout <= 0 {
		return errors.New("collector.run_timeout must be > 0")
	}
	return nil
}

func (p *PublishConfig) validate() error {
	if p.Redis.Enabled && p.Redis.URL == "" {
		return errors.New("publish.redis.url is required when redis is enabled")
	}
	if p.AMQP.Enabled && p.AMQP.URL == "" {
		return errors.New("publish.amqp.url is required when amqp is enabled")
	}
	if p.Telegram.Enabled {
		if p.Telegram.Token == "" {
			return errors.New("publish.telegram.token is required when telegram is enabled")
		}
		if p.Telegram.ChatID == 0 {
			return errors.New("publish.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
