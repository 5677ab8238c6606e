// Package reconciler refreshes cached position projections after chain
// writes. RPC nodes can lag a mined block by several seconds, so one read is
// not enough: each trigger runs a short bounded schedule of re-reads and
// publishes a snapshot for every successful pass.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/retry"
)

// Config tunes the reconciliation schedules.
type Config struct {
	// Schedule bounds a single triggered reconciliation: Schedule.MaxAttempts
	// snapshots spaced Schedule.Interval apart.
	Schedule retry.Policy

	// LoopInterval is the cadence of the background full refresh; zero
	// disables the loop.
	LoopInterval time.Duration

	// Wallets are the addresses the background loop refreshes.
	Wallets []common.Address
}

type job struct {
	wallet common.Address
	asset  domain.Asset
}

// Reconciler re-reads balances through the gateway and fans the resulting
// snapshots out to the cache and the event bus.
type Reconciler struct {
	gw     domain.ChainGateway
	assets *registry.AssetRegistry
	cache  domain.PositionCache
	bus    domain.EventBus
	cfg    Config
	logger *slog.Logger

	jobs chan job
}

// New creates a Reconciler. cache and bus may be nil.
func New(gw domain.ChainGateway, assets *registry.AssetRegistry, cache domain.PositionCache, bus domain.EventBus, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.Schedule.MaxAttempts == 0 {
		cfg.Schedule = retry.Reconciliations()
	}
	return &Reconciler{
		gw:     gw,
		assets: assets,
		cache:  cache,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "reconciler")),
		jobs:   make(chan job, 64),
	}
}

// Trigger queues a reconciliation for one (wallet, asset) pair. It never
// blocks the caller; when the queue is full the trigger is dropped, which is
// safe because the background loop will cover the miss.
func (r *Reconciler) Trigger(wallet common.Address, asset domain.Asset) {
	select {
	case r.jobs <- job{wallet: wallet, asset: asset}:
	default:
		r.logger.Warn("trigger queue full, dropping reconciliation",
			slog.String("wallet", wallet.Hex()),
			slog.String("asset", asset.Key),
		)
	}
}

// Run consumes triggered jobs, the background cadence, and cross-session
// yield-claimed events until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.cfg.LoopInterval > 0 {
		ticker := time.NewTicker(r.cfg.LoopInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var claims <-chan domain.Event
	if r.bus != nil {
		ch, err := r.bus.Subscribe(ctx, domain.TopicYieldClaimed)
		if err != nil {
			r.logger.Warn("yield-claimed subscription unavailable", slog.String("error", err.Error()))
		} else {
			claims = ch
		}
	}

	r.logger.Info("reconciler started",
		slog.Int("wallets", len(r.cfg.Wallets)),
		slog.Duration("loop_interval", r.cfg.LoopInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.jobs:
			r.reconcile(ctx, j.wallet, j.asset)
		case evt := <-claims:
			// A yield claim in one session moves balances other sessions
			// display; refresh every asset for that wallet.
			for _, a := range r.assets.List() {
				r.Trigger(evt.Wallet, a)
			}
		case <-tick:
			for _, w := range r.cfg.Wallets {
				for _, a := range r.assets.List() {
					if _, err := r.Snapshot(ctx, w, a); err != nil {
						r.logger.Warn("background refresh failed",
							slog.String("wallet", w.Hex()),
							slog.String("asset", a.Key),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		}
	}
}

// reconcile runs the full bounded schedule, publishing a snapshot after each
// successful pass. Individual failed passes are logged and skipped; lag is
// expected, not exceptional.
func (r *Reconciler) reconcile(ctx context.Context, wallet common.Address, asset domain.Asset) {
	for attempt := 1; attempt <= r.cfg.Schedule.MaxAttempts; attempt++ {
		if _, err := r.Snapshot(ctx, wallet, asset); err != nil {
			r.logger.Warn("reconciliation pass failed",
				slog.String("wallet", wallet.Hex()),
				slog.String("asset", asset.Key),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if attempt == r.cfg.Schedule.MaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.Schedule.Interval):
		}
	}
}

// Snapshot reads the five position projections through the gateway, caches
// the result, and publishes it on the bus. A missing market is not an error;
// PT and YT balances simply read zero until the market exists.
func (r *Reconciler) Snapshot(ctx context.Context, wallet common.Address, asset domain.Asset) (domain.Position, error) {
	pos := domain.Position{
		Wallet:    wallet,
		AssetKey:  asset.Key,
		UpdatedAt: time.Now().UTC(),
	}

	var err error
	if pos.UnderlyingBalance, err = r.gw.BalanceOf(ctx, asset.Underlying, wallet); err != nil {
		return domain.Position{}, err
	}
	if pos.SYBalance, err = r.gw.BalanceOf(ctx, asset.SYToken, wallet); err != nil {
		return domain.Position{}, err
	}

	market, err := r.gw.MarketOf(ctx, asset.Factory, asset.SYToken)
	switch {
	case err == nil:
		if pos.PTBalance, err = r.gw.BalanceOf(ctx, market.PTToken, wallet); err != nil {
			return domain.Position{}, err
		}
		if pos.YTBalance, err = r.gw.BalanceOf(ctx, market.YTToken, wallet); err != nil {
			return domain.Position{}, err
		}
	case errors.Is(err, domain.ErrMarketNotFound):
		pos.PTBalance = big.NewInt(0)
		pos.YTBalance = big.NewInt(0)
	default:
		return domain.Position{}, err
	}

	if pos.ClaimableYield, err = r.gw.ClaimableYieldOf(ctx, asset.Factory, asset.SYToken, wallet); err != nil {
		return domain.Position{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, pos); err != nil {
			r.logger.Warn("position cache write failed",
				slog.String("wallet", wallet.Hex()),
				slog.String("asset", asset.Key),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		evt := domain.Event{
			Topic:    domain.TopicPositionUpdated,
			AssetKey: asset.Key,
			Wallet:   wallet,
			Position: &pos,
			At:       time.Now().UTC(),
		}
		if err := r.bus.Publish(ctx, evt); err != nil {
			r.logger.Warn("position event publish failed", slog.String("error", err.Error()))
		}
	}
	return pos, nil
}
