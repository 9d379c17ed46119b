package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel         = "info"
	DefaultRootDir          = "data"
	DefaultFixturesDir      = "fixtures/v1"
	DefaultBackend          = BackendFile
	DefaultProviderURL      = "https://api.the-odds-api.com/v4"
	DefaultOddsFormat       = "decimal"
	DefaultProviderTimeout  = 20 * time.Second
	DefaultWindowPast       = 12 * time.Hour
	DefaultWindowFuture     = 36 * time.Hour
	DefaultToleranceMin     = 5
	DefaultCacheTTL         = 50 * time.Minute
	DefaultConcurrency      = 4
	DefaultRunTimeout       = 10 * time.Minute
	DefaultKickoffTolerance = 300 * time.Second
	DefaultMinConfidence    = 0.95
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisKeyPrefix   = "radar:"
	DefaultRedisTTL         = time.Hour
	DefaultAMQPExchange     = "odds.radar"
	DefaultTelegramTopN     = 10
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultServerAddr       = ":8080"
	DefaultWatchInterval    = 5 * time.Second
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Default list values. Copied on use so callers never share the backing arrays.
var (
	defaultRegions      = []string{"eu"}
	defaultMarkets      = []string{"h2h", "totals"}
	defaultOffsetsMin   = []int{1440, 720, 360, 180, 120, 60, 30, 15}
	defaultTotalsPoints = []float64{1.5, 2.5, 3.5}
	defaultThresholds   = map[string]float64{"h2h": 0.20, "totals": 0.10}
	defaultLeagues      = map[string]string{
		"ENG1": "soccer_epl",
		"ESP1": "soccer_spain_la_liga",
		"FRA1": "soccer_france_ligue_one",
		"GRE1": "soccer_greece_super_league",
	}
)

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// Storage defaults
	if c.Storage.RootDir == "" {
		c.Storage.RootDir = DefaultRootDir
	}
	if c.Storage.FixturesDir == "" {
		c.Storage.FixturesDir = DefaultFixturesDir
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}

	// Provider defaults
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderURL
	}
	if len(c.Provider.Regions) == 0 {
		c.Provider.Regions = append([]string(nil), defaultRegions...)
	}
	if len(c.Provider.Markets) == 0 {
		c.Provider.Markets = append([]string(nil), defaultMarkets...)
	}
	if c.Provider.OddsFormat == "" {
		c.Provider.OddsFormat = DefaultOddsFormat
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}

	if len(c.Leagues) == 0 {
		c.Leagues = make(map[string]string, len(defaultLeagues))
		for k, v := range defaultLeagues {
			c.Leagues[k] = v
		}
	}

	// Collector defaults
	if c.Collector.WindowPast == 0 {
		c.Collector.WindowPast = DefaultWindowPast
	}
	if c.Collector.WindowFuture == 0 {
		c.Collector.WindowFuture = DefaultWindowFuture
	}
	// A nil list means "not configured"; an explicit empty list selects hourly buckets.
	if c.Collector.OffsetsMin == nil {
		c.Collector.OffsetsMin = append([]int(nil), defaultOffsetsMin...)
	}
	if c.Collector.ToleranceMin == 0 {
		c.Collector.ToleranceMin = DefaultToleranceMin
	}
	if len(c.Collector.TotalsPoints) == 0 {
		c.Collector.TotalsPoints = append([]float64(nil), defaultTotalsPoints...)
	}
	if c.Collector.CacheTTL == 0 {
		c.Collector.CacheTTL = DefaultCacheTTL
	}
	if c.Collector.Concurrency == 0 {
		c.Collector.Concurrency = DefaultConcurrency
	}
	if c.Collector.RunTimeout == 0 {
		c.Collector.RunTimeout = DefaultRunTimeout
	}

	// Matcher defaults
	if c.Matcher.KickoffTolerance == 0 {
		c.Matcher.KickoffTolerance = DefaultKickoffTolerance
	}
	if c.Matcher.MinConfidence == 0 {
		c.Matcher.MinConfidence = DefaultMinConfidence
	}

	if c.Deviation.Thresholds == nil {
		c.Deviation.Thresholds = make(map[string]float64, len(defaultThresholds))
		for k, v := range defaultThresholds {
			c.Deviation.Thresholds[k] = v
		}
	}

	applyDBDefaults(&c.Database.Postgres)

	// Publish defaults
	if c.Publish.Redis.KeyPrefix == "" {
		c.Publish.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Publish.Redis.TTL == 0 {
		c.Publish.Redis.TTL = DefaultRedisTTL
	}
	if c.Publish.AMQP.Exchange == "" {
		c.Publish.AMQP.Exchange = DefaultAMQPExchange
	}
	if c.Publish.Telegram.TopN == 0 {
		c.Publish.Telegram.TopN = DefaultTelegramTopN
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.WatchInterval == 0 {
		c.Server.WatchInterval = DefaultWatchInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
