package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/Osiyomeoh/CoreYield-sub001/internal/blob/s3"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/bus"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/cache/redis"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/config"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/crypto"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/gateway/eth"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/notify"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/orchestrator"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/reconciler"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/retry"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/server/handler"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/service"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/store/postgres"
)

// defaultMaturity is used for configured assets that omit one.
const defaultMaturity = 365 * 24 * time.Hour

// Dependencies bundles everything the application modes need.
type Dependencies struct {
	Gateway      domain.ChainGateway
	Assets       *registry.AssetRegistry
	Reconciler   *reconciler.Reconciler
	Orchestrator *orchestrator.Orchestrator
	Positions    *service.PositionService
	Ledger       domain.TxLedgerStore
	Bus          domain.EventBus
	Notifier     *notify.Notifier
	Archiver     *s3blob.LedgerArchiver

	// HealthProbes feeds the health endpoint; keys are dependency names.
	HealthProbes map[string]handler.Pinger
}

// needsArchiver reports whether the mode runs the ledger archival loop.
func needsArchiver(mode string) bool {
	return mode == "serve" || mode == "full"
}

// pingerFunc adapts a plain probe function to handler.Pinger.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs every concrete dependency from the configuration and
// returns a cleanup function to run on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthProbes: make(map[string]handler.Pinger)}

	// --- Signing key and chain gateway ---
	priv, from, err := crypto.LoadECDSA(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
	}
	logger.InfoContext(ctx, "wallet loaded", slog.String("address", from.Hex()))

	ethClient, err := eth.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: rpc: %w", err)
	}
	closers = append(closers, ethClient.Close)

	chainGw := eth.New(ethClient, priv, eth.Config{
		GasLimit: cfg.Chain.GasLimit,
		Confirm: retry.Policy{
			MaxAttempts: cfg.Chain.ConfirmAttempts,
			Interval:    cfg.Chain.ConfirmInterval.Duration,
		},
	}, logger)
	deps.Gateway = chainGw
	signer := chainGw.From()

	// --- Asset registry ---
	extras := make([]domain.Asset, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		extras = append(extras, assetFromConfig(a))
	}
	deps.Assets = registry.New(extras...)

	// --- PostgreSQL tx ledger ---
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
	deps.Ledger = postgres.NewTxLedgerStore(pgClient.Pool())
	deps.HealthProbes["postgres"] = pgClient

	// --- Redis position cache and event bus ---
	// The orchestrator stays operational without Redis: positions fall back
	// to direct chain reads and events flow over an in-process bus.
	var positionCache domain.PositionCache
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		logger.WarnContext(ctx, "redis unavailable, using in-process event bus",
			slog.String("error", err.Error()),
		)
		deps.Bus = bus.NewMemory(logger)
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
		positionCache = redis.NewPositionCache(redisClient)
		deps.Bus = redis.NewEventBus(redisClient, logger)
		deps.HealthProbes["redis"] = redisClient
	}

	// --- S3 ledger archival ---
	if needsArchiver(cfg.Mode) {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewLedgerArchiver(s3blob.NewWriter(s3Client), deps.Ledger, logger)
		deps.HealthProbes["s3"] = pingerFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Reconciler, orchestrator, position service ---
	wallets := make([]common.Address, 0, len(cfg.Reconciler.Wallets)+1)
	wallets = append(wallets, from)
	for _, w := range cfg.Reconciler.Wallets {
		if !common.IsHexAddress(w) {
			logger.WarnContext(ctx, "skipping invalid reconciler wallet", slog.String("wallet", w))
			continue
		}
		wallets = append(wallets, common.HexToAddress(w))
	}

	deps.Reconciler = reconciler.New(deps.Gateway, deps.Assets, positionCache, deps.Bus, reconciler.Config{
		Schedule: retry.Policy{
			MaxAttempts: cfg.Reconciler.Attempts,
			Interval:    cfg.Reconciler.Interval.Duration,
		},
		LoopInterval: cfg.Reconciler.LoopInterval.Duration,
		Wallets:      wallets,
	}, logger)

	deps.Orchestrator = orchestrator.New(
		deps.Gateway, deps.Assets, deps.Reconciler, deps.Notifier, deps.Bus, deps.Ledger,
		orchestrator.Config{
			MarketPoll: retry.Policy{
				MaxAttempts: cfg.Orchestrator.MarketPollAttempts,
				Interval:    cfg.Orchestrator.MarketPollInterval.Duration,
			},
			BalancePoll: retry.Policy{
				MaxAttempts: cfg.Orchestrator.BalancePollAttempts,
				Interval:    cfg.Orchestrator.BalancePollInterval.Duration,
			},
			CompleteCooldown: cfg.Orchestrator.CompleteCooldown.Duration,
			Signer:           signer,
		}, logger)

	deps.Positions = service.New(
		deps.Gateway, signer, deps.Assets, deps.Reconciler, positionCache, deps.Bus, deps.Ledger, logger)

	return deps, cleanup, nil
}

// assetFromConfig converts a configured asset declaration to the domain form.
func assetFromConfig(a config.AssetConfig) domain.Asset {
	maturity := a.Maturity.Duration
	if maturity <= 0 {
		maturity = defaultMaturity
	}
	return domain.Asset{
		Key:              a.Key,
		Symbol:           a.Symbol,
		Name:             a.Name,
		Decimals:         a.Decimals,
		DisplayAPY:       a.DisplayAPY,
		Underlying:       common.HexToAddress(a.Underlying),
		SYToken:          common.HexToAddress(a.SYToken),
		Factory:          common.HexToAddress(a.Factory),
		MaturityDuration: maturity,
	}
}
