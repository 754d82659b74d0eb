package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/polyarb/internal/blob/s3"
	"github.com/alanyoungcy/polyarb/internal/bookstate"
	"github.com/alanyoungcy/polyarb/internal/cache/redis"
	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/store/postgres"
	"github.com/alanyoungcy/polyarb/internal/venue/opinion"
	"github.com/alanyoungcy/polyarb/internal/venue/polymarket"
)

// wsTokenLimit caps how many outcome tokens one stream subscribes to.
const wsTokenLimit = 100

// Dependencies bundles everything the operating modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	VenueA domain.VenueAdapter
	VenueB domain.VenueAdapter
	Books  *bookstate.Store
	Feeds  []*bookstate.Feed

	OpportunityStore domain.OpportunityStore
	ExecutionStore   domain.ExecutionStore
	AuditStore       domain.AuditStore

	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus
	Locks       domain.LockManager

	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier
}

// needsS3 reports whether a mode runs the archiver. The one-shot scan mode
// exits before a retention window could elapse.
func needsS3(mode string) bool {
	switch mode {
	case "bot", "monitor":
		return true
	default:
		return false
	}
}

// needsSigner reports whether a mode can place orders.
func needsSigner(cfg *config.Config) bool {
	return cfg.Mode == "bot" || cfg.Execution.AutoExecute
}

// Wire constructs the concrete dependency implementations from configuration.
// The cleanup function releases connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// Postgres: opportunities, executions, audit trail.
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

	if err := pgClient.RunMigrations(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
	}

	pool := pgClient.Pool()
	oppStore := postgres.NewOpportunityStore(pool)
	execStore := postgres.NewExecutionStore(pool)
	deps.OpportunityStore = oppStore
	deps.ExecutionStore = execStore
	deps.AuditStore = postgres.NewAuditStore(pool)

	// Redis: catalog cache, pub/sub signals, execution locks.
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

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)

	// S3: cold storage for aged opportunity and execution rows.
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, oppStore, execStore, deps.AuditStore)
	}

	// Polymarket: signer only when orders can be placed.
	var signer *crypto.Signer
	if needsSigner(cfg) {
		keyHex, err := crypto.ResolveKey(crypto.KeySource{
			Raw:      cfg.Wallet.PrivateKey,
			Path:     cfg.Wallet.EncryptedKeyPath,
			Password: cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err = crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
	}

	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer)
	if signer != nil {
		if err := clob.DeriveAPIKey(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: derive api key: %w", err)
		}
	}
	deps.VenueA = polymarket.NewAdapter(polymarket.AdapterConfig{
		GammaURL:          cfg.Polymarket.GammaHost,
		ClobURL:           cfg.Polymarket.ClobHost,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
	}, clob, logger)

	deps.VenueB = opinion.NewAdapter(opinion.AdapterConfig{
		BaseURL:           cfg.Opinion.BaseURL,
		APIKey:            cfg.Opinion.APIKey,
		RequestsPerSecond: cfg.Opinion.RequestsPerSecond,
	}, logger)

	// Streamed book state. Token subscriptions track the cached catalog, so
	// a feed connects once a scan has populated it and resubscribes on every
	// reconnect.
	deps.Books = bookstate.New(0)
	if cfg.Polymarket.WsHost != "" {
		feed := bookstate.NewFeed(
			polymarket.NewWSFeed(cfg.Polymarket.WsHost, catalogTokens(deps.MarketCache, domain.VenuePolymarket)),
			deps.Books, logger,
		)
		deps.Feeds = append(deps.Feeds, feed)
	}
	if cfg.Opinion.WsURL != "" {
		feed := bookstate.NewFeed(
			opinion.NewWSFeed(cfg.Opinion.WsURL, cfg.Opinion.APIKey, catalogTokens(deps.MarketCache, domain.VenueOpinion)),
			deps.Books, logger,
		)
		deps.Feeds = append(deps.Feeds, feed)
	}

	// Notifications.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// catalogTokens returns the outcome tokens of a venue's cached catalog, up to
// wsTokenLimit. An empty result makes the stream connect fail and retry after
// backoff, which is the desired behavior before the first scan lands.
func catalogTokens(cache domain.MarketCache, venue domain.Venue) func() []string {
	return func() []string {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		markets, err := cache.GetCatalog(ctx, venue)
		if err != nil {
			return nil
		}
		seen := make(map[string]bool, len(markets)*2)
		var tokens []string
		for _, m := range markets {
			for _, tid := range []string{m.YesTokenRef, m.NoTokenRef} {
				if tid == "" || seen[tid] {
					continue
				}
				seen[tid] = true
				tokens = append(tokens, tid)
				if len(tokens) >= wsTokenLimit {
					return tokens
				}
			}
		}
		return tokens
	}
}
