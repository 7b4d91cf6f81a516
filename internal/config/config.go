// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Registry   RegistryConfig   `toml:"registry"`
	Fees       FeesConfig       `toml:"fees"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Sizing     SizingConfig     `toml:"sizing"`
	Storage    StorageConfig    `toml:"storage"`
	Postgres   PostgresConfig   `toml:"postgres"`
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// KalshiConfig holds the Kalshi market-data endpoint and optional request
// signing credentials.
type KalshiConfig struct {
	BaseURL           string   `toml:"base_url"`
	ApiKey            string   `toml:"api_key"`
	RsaPrivateKeyPath string   `toml:"rsa_private_key_path"`
	RateLimit         float64  `toml:"rate_limit"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
}

// PolymarketConfig holds the Polymarket CLOB endpoint.
type PolymarketConfig struct {
	ClobHost  string   `toml:"clob_host"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
	Timeout   duration `toml:"timeout"`
}

// RegistryConfig points at the canonical event file.
type RegistryConfig struct {
	Path string `toml:"path"`
}

// FeesConfig holds one fee schedule per venue.
type FeesConfig struct {
	Kalshi     FeeScheduleConfig `toml:"kalshi"`
	Polymarket FeeScheduleConfig `toml:"polymarket"`
}

// FeeScheduleConfig is the TOML form of domain.FeeSchedule.
type FeeScheduleConfig struct {
	Kind         string  `toml:"kind"`
	TakerRate    float64 `toml:"taker_rate"`
	MakerRate    float64 `toml:"maker_rate"`
	FixedCost    float64 `toml:"fixed_cost"`
	RoundingUnit float64 `toml:"rounding_unit"`
}

// Schedule converts the section into a domain fee schedule for venue v.
func (f FeeScheduleConfig) Schedule(v domain.Venue) domain.FeeSchedule {
	return domain.FeeSchedule{
		Venue:        v,
		Kind:         domain.FeeKind(strings.ToLower(f.Kind)),
		TakerRate:    f.TakerRate,
		MakerRate:    f.MakerRate,
		FixedCost:    f.FixedCost,
		RoundingUnit: f.RoundingUnit,
	}
}

// ArbitrageConfig tunes the evaluator and the cycle loop.
type ArbitrageConfig struct {
	VenueA string `toml:"venue_a"`
	VenueB string `toml:"venue_b"`
	// Liquidity maps venue name to "taker" or "maker". There is no default:
	// both venues must be set.
	Liquidity map[string]string `toml:"liquidity"`

	QuantityStep  float64  `toml:"quantity_step"`
	QuantityMax   float64  `toml:"quantity_max"`
	MaxSweepSteps int      `toml:"max_sweep_steps"`
	MinROIPct     float64  `toml:"min_roi_pct"`
	MinProfitUSD  float64  `toml:"min_profit_usd"`
	FixedCostUSD  float64  `toml:"fixed_cost_usd"`
	MaxQuoteAge   duration `toml:"max_quote_age"`

	Interval duration `toml:"interval"`
	Workers  int      `toml:"workers"`
	// LockKey enables the Redis cycle lock when set.
	LockKey string `toml:"lock_key"`
}

// SizingConfig lists the capital tiers in USD.
type SizingConfig struct {
	Tiers []float64 `toml:"tiers"`
}

// StorageConfig selects the history backend: "postgres", "sqlite" or "none".
type StorageConfig struct {
	Backend string `toml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SQLiteConfig holds the local database path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; an
// empty addr disables the book cache, bus and cycle lock.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	BookTTL      duration `toml:"book_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	Namespace    string   `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old history to S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	Prune         bool   `toml:"prune"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Defaults returns a Config populated with reasonable default values.
// Liquidity flags are deliberately absent.
func Defaults() Config {
	return Config{
		Mode:     "evaluate",
		LogLevel: "info",
		Kalshi: KalshiConfig{
			BaseURL:   "https://api.elections.kalshi.com/trade-api/v2",
			RateLimit: 10,
			Burst:     10,
			Timeout:   duration{10 * time.Second},
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			RateLimit: 20,
			Burst:     20,
			Timeout:   duration{10 * time.Second},
		},
		Registry: RegistryConfig{Path: "events.yaml"},
		Fees: FeesConfig{
			Kalshi: FeeScheduleConfig{
				Kind:         string(domain.FeeKindQuadratic),
				TakerRate:    0.07,
				MakerRate:    0.0175,
				RoundingUnit: 0.01,
			},
			Polymarket: FeeScheduleConfig{
				Kind: string(domain.FeeKindNotional),
			},
		},
		Arbitrage: ArbitrageConfig{
			VenueA:        string(domain.VenueKalshi),
			VenueB:        string(domain.VenuePolymarket),
			QuantityStep:  10,
			QuantityMax:   1000,
			MaxSweepSteps: 1000,
			MaxQuoteAge:   duration{10 * time.Second},
			Interval:      duration{5 * time.Second},
			Workers:       8,
		},
		Sizing:  SizingConfig{Tiers: []float64{50, 100, 250, 500, 1000}},
		Storage: StorageConfig{Backend: "sqlite"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{Path: "arbbot.db"},
		Redis: RedisConfig{
			PoolSize:     20,
			MaxRetries:   3,
			BookTTL:      duration{time.Minute},
			StreamMaxLen: 10000,
			Namespace:    "arbbot",
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "arbbot-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Cron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
			Burst:       40,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_opened", "opportunity_closed", "error"},
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"evaluate": true,
	"monitor":  true,
	"report":   true,
	"archive":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"none":     true,
}

var validNotifyEvents = map[string]bool{
	"opportunity_opened": true,
	"opportunity_closed": true,
	"error":              true,
}

// Venues returns the parsed venue pair. Validate must have passed.
func (c *Config) Venues() domain.VenuePair {
	a, _ := domain.ParseVenue(c.Arbitrage.VenueA)
	b, _ := domain.ParseVenue(c.Arbitrage.VenueB)
	return domain.VenuePair{A: a, B: b}
}

// Liquidity returns the parsed liquidity flag per venue. Validate must have
// passed.
func (c *Config) Liquidity() map[domain.Venue]domain.Liquidity {
	out := make(map[domain.Venue]domain.Liquidity, len(c.Arbitrage.Liquidity))
	for name, flag := range c.Arbitrage.Liquidity {
		v, err := domain.ParseVenue(name)
		if err != nil {
			continue
		}
		if l, err := domain.ParseLiquidity(flag); err == nil {
			out[v] = l
		}
	}
	return out
}

// FeeSchedule returns the configured schedule for venue v.
func (c *Config) FeeSchedule(v domain.Venue) domain.FeeSchedule {
	if v == domain.VenueKalshi {
		return c.Fees.Kalshi.Schedule(v)
	}
	return c.Fees.Polymarket.Schedule(v)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: evaluate, monitor, report, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	scanning := mode == "evaluate" || mode == "report"
	if scanning {
		errs = append(errs, c.validateScan()...)
	}

	backend := strings.ToLower(c.Storage.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: postgres, sqlite, none)", c.Storage.Backend))
	}
	if backend == "none" && (mode == "monitor" || mode == "archive") {
		errs = append(errs, fmt.Sprintf("storage: mode %s needs a history backend", mode))
	}
	if backend == "postgres" && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if backend == "postgres" && c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}
	if backend == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}

	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if mode == "monitor" && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr is required for monitor mode")
	}

	if c.Archive.Enabled || mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Enabled && strings.TrimSpace(c.Archive.Cron) == "" {
			errs = append(errs, "archive: cron must not be empty when enabled")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	for _, ev := range c.Notify.Events {
		if !validNotifyEvents[ev] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateScan() []string {
	var errs []string

	a, errA := domain.ParseVenue(c.Arbitrage.VenueA)
	b, errB := domain.ParseVenue(c.Arbitrage.VenueB)
	switch {
	case errA != nil || errB != nil:
		errs = append(errs, fmt.Sprintf("arbitrage: venue_a/venue_b must be known venues, got %q and %q",
			c.Arbitrage.VenueA, c.Arbitrage.VenueB))
	case a == b:
		errs = append(errs, "arbitrage: venue_a and venue_b must differ")
	default:
		for _, v := range []domain.Venue{a, b} {
			flag, ok := c.Arbitrage.Liquidity[string(v)]
			if !ok || flag == "" {
				errs = append(errs, fmt.Sprintf("arbitrage: liquidity.%s must be set to taker or maker", v))
				continue
			}
			if _, err := domain.ParseLiquidity(flag); err != nil {
				errs = append(errs, fmt.Sprintf("arbitrage: liquidity.%s: %v", v, err))
			}
			if err := c.FeeSchedule(v).Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("fees: %v", err))
			}
		}
	}

	if c.Arbitrage.QuantityStep <= 0 {
		errs = append(errs, "arbitrage: quantity_step must be > 0")
	}
	if c.Arbitrage.QuantityMax < c.Arbitrage.QuantityStep {
		errs = append(errs, "arbitrage: quantity_max must be >= quantity_step")
	}
	if c.Arbitrage.MaxSweepSteps < 1 {
		errs = append(errs, "arbitrage: max_sweep_steps must be >= 1")
	}
	if c.Arbitrage.FixedCostUSD < 0 {
		errs = append(errs, "arbitrage: fixed_cost_usd must be >= 0")
	}
	if c.Arbitrage.MinProfitUSD < 0 {
		errs = append(errs, "arbitrage: min_profit_usd must be >= 0")
	}
	if c.Arbitrage.MinROIPct < 0 {
		errs = append(errs, "arbitrage: min_roi_pct must be >= 0")
	}
	if c.Arbitrage.MaxQuoteAge.Duration <= 0 {
		errs = append(errs, "arbitrage: max_quote_age must be > 0")
	}
	if c.Arbitrage.Interval.Duration <= 0 {
		errs = append(errs, "arbitrage: interval must be > 0")
	}
	if c.Arbitrage.LockKey != "" && c.Redis.Addr == "" {
		errs = append(errs, "arbitrage: lock_key needs redis.addr")
	}
	for _, t := range c.Sizing.Tiers {
		if t <= 0 {
			errs = append(errs, fmt.Sprintf("sizing: tier %v must be > 0", t))
		}
	}
	if c.Registry.Path == "" {
		errs = append(errs, "registry: path must not be empty")
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	return errs
}
