package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jfilipcz/netfolio/internal/aggregator"
	s3blob "github.com/jfilipcz/netfolio/internal/blob/s3"
	"github.com/jfilipcz/netfolio/internal/cache"
	"github.com/jfilipcz/netfolio/internal/cache/redis"
	"github.com/jfilipcz/netfolio/internal/config"
	"github.com/jfilipcz/netfolio/internal/domain"
	"github.com/jfilipcz/netfolio/internal/notify"
	"github.com/jfilipcz/netfolio/internal/platform/blockstream"
	"github.com/jfilipcz/netfolio/internal/platform/coingecko"
	"github.com/jfilipcz/netfolio/internal/platform/ethereum"
	"github.com/jfilipcz/netfolio/internal/price"
	"github.com/jfilipcz/netfolio/internal/scheduler"
	"github.com/jfilipcz/netfolio/internal/source"
	"github.com/jfilipcz/netfolio/internal/store/postgres"
)

// Dependencies bundles every component the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	SnapshotStore domain.SnapshotStore
	FiatStore     domain.FiatStore

	// Redis-backed components
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage; nil when no export bucket is configured.
	Exporter    domain.Exporter
	BlobDeleter interface {
		Delete(ctx context.Context, path string) error
	}

	// Engine
	FetchCache *cache.FetchCache
	Registry   *source.Registry
	Aggregator *aggregator.Aggregator
	Scheduler  *scheduler.Scheduler

	// Notifications
	Notifier *notify.Notifier
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

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	snapshotStore := postgres.NewSnapshotStore(pgClient.Pool())
	deps.SnapshotStore = snapshotStore
	deps.FiatStore = postgres.NewFiatStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Oracle.PriceTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 export storage (only when a bucket is configured) ---
	if cfg.Export.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Export.Endpoint,
			Region:         cfg.Export.Region,
			Bucket:         cfg.Export.Bucket,
			AccessKey:      cfg.Export.AccessKey,
			SecretKey:      cfg.Export.SecretKey,
			UseSSL:         cfg.Export.UseSSL,
			ForcePathStyle: cfg.Export.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		writer := s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.Exporter = s3blob.NewExporter(writer, reader, snapshotStore)
		deps.BlobDeleter = reader
	}

	// --- Balance sources ---
	var ethClient source.EthereumClient
	if len(cfg.Blockchain.EthAddresses) > 0 {
		c, err := ethereum.Dial(ctx, cfg.Blockchain.EthRpcURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ethereum: %w", err)
		}
		closers = append(closers, c.Close)
		ethClient = c
	}

	var btcClient source.BitcoinClient
	if len(cfg.Blockchain.BtcAddresses) > 0 {
		btcClient = blockstream.New(cfg.Blockchain.BtcAPIURL)
	}

	registry, err := source.BuildRegistry(cfg, ethClient, btcClient, deps.FiatStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: sources: %w", err)
	}
	deps.Registry = registry

	// --- Valuation engine ---
	oracle := coingecko.New(cfg.Oracle.BaseURL)
	resolver := price.NewResolver(oracle, deps.PriceCache, domain.Asset(cfg.Main.Currency), logger)

	deps.FetchCache = cache.New(logger)
	deps.Aggregator = aggregator.New(
		registry.Sources(),
		registry.ExchangeLocations(),
		deps.FetchCache,
		resolver,
		deps.SnapshotStore,
		cfg.Main.CacheTTL.Duration,
		cfg.Main.FetchTimeout.Duration,
		logger,
	)
	deps.Scheduler = scheduler.New(deps.SignalBus, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
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
