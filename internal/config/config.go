package config

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Config is the root configuration shared by the collector, the radar server
// and the fixture checker.
type Config struct {
	Instance  InstanceConfig    `yaml:"instance"`
	Log       LogConfig         `yaml:"log"`
	Storage   StorageConfig     `yaml:"storage"`
	Provider  ProviderConfig    `yaml:"provider"`
	Leagues   map[string]string `yaml:"leagues"` // league id -> provider sport key
	Collector CollectorConfig   `yaml:"collector"`
	Matcher   MatcherConfig     `yaml:"matcher"`
	Deviation DeviationConfig   `yaml:"deviation"`
	Database  DatabaseConfig    `yaml:"database"`
	Publish   PublishConfig     `yaml:"publish"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Server    ServerConfig      `yaml:"server"`
}

// LeagueIDs returns the configured league ids in sorted order.
func (c *Config) LeagueIDs() []string {
	ids := make([]string, 0, len(c.Leagues))
	for id := range c.Leagues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InstanceConfig identifies this deployment in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SlogLevel maps Level to a slog level; unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageConfig holds the on-disk layout.
type StorageConfig struct {
	RootDir     string `yaml:"root_dir"`     // odds/ tree is created below this
	FixturesDir string `yaml:"fixtures_dir"` // fixture registry, league=<L>/date=<D>.json
	Backend     string `yaml:"backend"`      // "file" or "postgres" (snapshots only)
}

// ProviderConfig holds odds provider settings.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key" env:"ODDS_API_KEY"`
	Regions    []string      `yaml:"regions"`
	Markets    []string      `yaml:"markets"`
	Bookmakers []string      `yaml:"bookmakers"`
	OddsFormat string        `yaml:"odds_format"`
	Timeout    time.Duration `yaml:"timeout"`     // per league fetch
	MaxRetries int           `yaml:"max_retries"` // 0 = no in-run retry
}

// CollectorConfig holds run settings.
type CollectorConfig struct {
	WindowPast   time.Duration `yaml:"window_past"`
	WindowFuture time.Duration `yaml:"window_future"`
	OffsetsMin   []int         `yaml:"offsets_min"`   // snapshot offsets, minutes before kickoff
	ToleranceMin int           `yaml:"tolerance_min"` // +/- minutes around each offset
	TotalsPoints []float64     `yaml:"totals_points"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	Concurrency  int           `yaml:"concurrency"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
	Schedule     string        `yaml:"schedule"` // cron spec; empty = run once
}

// MatcherConfig holds fixture matching settings.
type MatcherConfig struct {
	KickoffTolerance time.Duration `yaml:"kickoff_tolerance"`
	MinConfidence    float64       `yaml:"min_confidence"`
}

// DeviationConfig holds radar settings. Markets without a threshold are not scanned.
type DeviationConfig struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
	Bookmakers []string           `yaml:"bookmakers"` // empty = all bookmakers
}

// DatabaseConfig holds the PostgreSQL connection used by the postgres snapshot backend.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PublishConfig holds the optional radar sinks.
type PublishConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// RedisConfig configures the Redis radar cache.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url" env:"REDIS_URL"`
	Password  string        `yaml:"password" env:"REDIS_PASSWORD"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// AMQPConfig configures the RabbitMQ radar exchange.
type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange"`
}

// TelegramConfig configures radar alerts to a Telegram chat.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID  int64  `yaml:"chat_id"`
	TopN    int    `yaml:"top_n"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// ServerConfig holds radar server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WatchInterval  time.Duration `yaml:"watch_interval"`
}
