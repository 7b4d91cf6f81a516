package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	s3blob "github.com/steffenmax/arbbot/internal/blob/s3"
	"github.com/steffenmax/arbbot/internal/cache/redis"
	"github.com/steffenmax/arbbot/internal/config"
	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/notify"
	"github.com/steffenmax/arbbot/internal/platform/kalshi"
	"github.com/steffenmax/arbbot/internal/platform/polymarket"
	"github.com/steffenmax/arbbot/internal/registry"
	"github.com/steffenmax/arbbot/internal/server/handler"
	"github.com/steffenmax/arbbot/internal/service"
	"github.com/steffenmax/arbbot/internal/store/postgres"
	"github.com/steffenmax/arbbot/internal/store/sqlite"
)

// Dependencies bundles every dependency the modes need. It is constructed by
// Wire and torn down by the returned cleanup function. Optional parts are
// left nil when their backend is not configured.
type Dependencies struct {
	// Scanning (evaluate and report modes)
	Registry *registry.Registry
	Sources  []domain.BookSource

	// History
	CandidateStore   domain.CandidateStore
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore

	// Redis
	BookCache   domain.BookCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Checks backs /api/health, keyed by backend name.
	Checks map[string]handler.Checker
}

func scans(mode string) bool {
	return mode == "evaluate" || mode == "report"
}

// needsS3 returns true for modes that move history to object storage.
func needsS3(cfg *config.Config, mode string) bool {
	return mode == "archive" || (mode == "evaluate" && cfg.Archive.Enabled)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{Checks: make(map[string]handler.Checker)}

	// --- History store ---
	switch strings.ToLower(cfg.Storage.Backend) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.CandidateStore = postgres.NewCandidateStore(pool)
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Health

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })

		deps.CandidateStore = sqlite.NewCandidateStore(db)
		deps.OpportunityStore = sqlite.NewOpportunityStore(db)
		deps.AuditStore = sqlite.NewAuditStore(db)
		deps.Checks["sqlite"] = db.Health
	}

	// --- Redis ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewBookCache(redisClient, cfg.Redis.BookTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if needsS3(cfg, mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Checks["s3"] = s3Client.Health

		// The archiver reads from the history store, so it needs one.
		if deps.CandidateStore != nil && deps.OpportunityStore != nil {
			deps.Archiver = s3blob.NewArchiver(
				s3Client,
				s3Client,
				deps.OpportunityStore,
				deps.CandidateStore,
				deps.AuditStore,
				s3blob.ArchiverOptions{Prune: cfg.Archive.Prune},
				logger,
			)
		}
	}

	// --- Scanning inputs ---
	if scans(mode) {
		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return fail(fmt.Errorf("wire: registry: %w", err))
		}
		deps.Registry = reg

		sources, err := buildSources(cfg)
		if err != nil {
			return fail(err)
		}
		if deps.BookCache != nil {
			for i, src := range sources {
				sources[i] = service.NewCachingSource(src, deps.BookCache, logger)
			}
		}
		deps.Sources = sources
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			notify.DefaultTelegramURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildSources creates one rate-limited book source per venue.
func buildSources(cfg *config.Config) ([]domain.BookSource, error) {
	kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey)
	kc.SetRateLimit(cfg.Kalshi.RateLimit, cfg.Kalshi.Burst)
	if cfg.Kalshi.Timeout.Duration > 0 {
		kc.SetTimeout(cfg.Kalshi.Timeout.Duration)
	}
	if cfg.Kalshi.RsaPrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("wire: kalshi private key: %w", err)
		}
		if err := kc.SetRSAPrivateKey(pemBytes); err != nil {
			return nil, fmt.Errorf("wire: kalshi private key: %w", err)
		}
	}

	pc := polymarket.NewClobClient(cfg.Polymarket.ClobHost)
	pc.SetRateLimit(cfg.Polymarket.RateLimit, cfg.Polymarket.Burst)
	if cfg.Polymarket.Timeout.Duration > 0 {
		pc.SetTimeout(cfg.Polymarket.Timeout.Duration)
	}

	return []domain.BookSource{
		kalshi.NewBookSource(kc),
		polymarket.NewBookSource(pc),
	}, nil
}
