package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "ARBBOT_MODE")
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")

	// ── Venues ──
	setStr(&cfg.Kalshi.BaseURL, "ARBBOT_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "ARBBOT_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "ARBBOT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setFloat64(&cfg.Kalshi.RateLimit, "ARBBOT_KALSHI_RATE_LIMIT")
	setStr(&cfg.Polymarket.ClobHost, "ARBBOT_POLYMARKET_CLOB_HOST")
	setFloat64(&cfg.Polymarket.RateLimit, "ARBBOT_POLYMARKET_RATE_LIMIT")

	// ── Registry ──
	setStr(&cfg.Registry.Path, "ARBBOT_REGISTRY_PATH")

	// ── Arbitrage ──
	setStr(&cfg.Arbitrage.VenueA, "ARBBOT_ARBITRAGE_VENUE_A")
	setStr(&cfg.Arbitrage.VenueB, "ARBBOT_ARBITRAGE_VENUE_B")
	setMapEntry(&cfg.Arbitrage.Liquidity, "kalshi", "ARBBOT_ARBITRAGE_LIQUIDITY_KALSHI")
	setMapEntry(&cfg.Arbitrage.Liquidity, "polymarket", "ARBBOT_ARBITRAGE_LIQUIDITY_POLYMARKET")
	setFloat64(&cfg.Arbitrage.QuantityStep, "ARBBOT_ARBITRAGE_QUANTITY_STEP")
	setFloat64(&cfg.Arbitrage.QuantityMax, "ARBBOT_ARBITRAGE_QUANTITY_MAX")
	setInt(&cfg.Arbitrage.MaxSweepSteps, "ARBBOT_ARBITRAGE_MAX_SWEEP_STEPS")
	setFloat64(&cfg.Arbitrage.MinROIPct, "ARBBOT_ARBITRAGE_MIN_ROI_PCT")
	setFloat64(&cfg.Arbitrage.MinProfitUSD, "ARBBOT_ARBITRAGE_MIN_PROFIT_USD")
	setFloat64(&cfg.Arbitrage.FixedCostUSD, "ARBBOT_ARBITRAGE_FIXED_COST_USD")
	setDuration(&cfg.Arbitrage.MaxQuoteAge, "ARBBOT_ARBITRAGE_MAX_QUOTE_AGE")
	setDuration(&cfg.Arbitrage.Interval, "ARBBOT_ARBITRAGE_INTERVAL")
	setInt(&cfg.Arbitrage.Workers, "ARBBOT_ARBITRAGE_WORKERS")
	setStr(&cfg.Arbitrage.LockKey, "ARBBOT_ARBITRAGE_LOCK_KEY")

	// ── Sizing ──
	setFloatSlice(&cfg.Sizing.Tiers, "ARBBOT_SIZING_TIERS")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "ARBBOT_STORAGE_BACKEND")
	setStr(&cfg.Postgres.DSN, "ARBBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBBOT_POSTGRES_RUN_MIGRATIONS")
	setStr(&cfg.SQLite.Path, "ARBBOT_SQLITE_PATH")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "ARBBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "ARBBOT_REDIS_NAMESPACE")

	// ── S3 / archive ──
	setStr(&cfg.S3.Endpoint, "ARBBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBBOT_S3_FORCE_PATH_STYLE")
	setBool(&cfg.Archive.Enabled, "ARBBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARBBOT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "ARBBOT_ARCHIVE_CRON")
	setBool(&cfg.Archive.Prune, "ARBBOT_ARCHIVE_PRUNE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBBOT_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimit, "ARBBOT_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.Burst, "ARBBOT_SERVER_BURST")
	setBool(&cfg.Metrics.Enabled, "ARBBOT_METRICS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBBOT_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setFloatSlice(dst *[]float64, key string) {
	if v := os.Getenv(key); v != "" {
		var out []float64
		for _, p := range strings.Split(v, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return
			}
			out = append(out, f)
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

func setMapEntry(dst *map[string]string, name, key string) {
	if v := os.Getenv(key); v != "" {
		if *dst == nil {
			*dst = make(map[string]string)
		}
		(*dst)[name] = v
	}
}
