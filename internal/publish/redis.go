package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/odds-history/internal/config"
	"github.com/rickgao/odds-history/internal/model"
)

// RedisPublisher caches the latest radar under <prefix>latest and each
// league's slice under <prefix>league:<league>.
type RedisPublisher struct {
	client redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// DialRedis connects to the configured Redis and verifies it with PING.
func DialRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	p := NewRedisPublisher(client, cfg.KeyPrefix, cfg.TTL, logger)
	p.closer = client.Close
	return p, nil
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client redis.Cmdable, prefix string, ttl time.Duration, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = config.DefaultRedisKeyPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "redis_publisher"),
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

// LatestKey returns the key holding the full radar.
func (p *RedisPublisher) LatestKey() string {
	return p.prefix + "latest"
}

// LeagueKey returns the key holding one league's radar.
func (p *RedisPublisher) LeagueKey(league string) string {
	return p.prefix + "league:" + league
}

// Publish writes all keys in one MULTI/EXEC transaction.
func (p *RedisPublisher) Publish(ctx context.Context, radar model.Radar) error {
	full, err := json.Marshal(radar)
	if err != nil {
		return fmt.Errorf("marshal radar: %w", err)
	}
	groups := byLeague(radar)
	leagues := leagueNames(groups)

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.LatestKey(), full, p.ttl)
		for _, league := range leagues {
			data, err := json.Marshal(leagueRadar(radar, groups[league]))
			if err != nil {
				return fmt.Errorf("marshal radar for %s: %w", league, err)
			}
			pipe.Set(ctx, p.LeagueKey(league), data, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	p.logger.Debug("radar cached", "key", p.LatestKey(), "leagues", len(leagues), "ttl", p.ttl)
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
