// Package service implements the single-transaction position operations that
// do not need the orchestrator's multi-step state machine: snapshots, yield
// claims, unwraps, redemptions, and faucet mints.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
)

// Reconciling is the slice of the reconciler the service depends on.
type Reconciling interface {
	Trigger(wallet common.Address, asset domain.Asset)
	Snapshot(ctx context.Context, wallet common.Address, asset domain.Asset) (domain.Position, error)
}

// PositionService exposes read and single-write position operations.
type PositionService struct {
	gw         domain.ChainGateway
	signer     common.Address
	assets     *registry.AssetRegistry
	reconciler Reconciling
	cache      domain.PositionCache
	bus        domain.EventBus
	ledger     domain.TxLedgerStore
	logger     *slog.Logger
}

// New creates a PositionService. signer is the wallet the gateway signs with;
// write operations naming any other wallet are rejected (the zero address
// disables the check). cache, bus, and ledger may be nil.
func New(
	gw domain.ChainGateway,
	signer common.Address,
	assets *registry.AssetRegistry,
	rec Reconciling,
	cache domain.PositionCache,
	bus domain.EventBus,
	ledger domain.TxLedgerStore,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		gw:         gw,
		signer:     signer,
		assets:     assets,
		reconciler: rec,
		cache:      cache,
		bus:        bus,
		ledger:     ledger,
		logger:     logger.With(slog.String("component", "service")),
	}
}

// checkWallet rejects writes that would spend from the signer while being
// attributed to a different wallet.
func (s *PositionService) checkWallet(wallet common.Address) error {
	if s.signer != (common.Address{}) && wallet != s.signer {
		return domain.ErrWalletNotOrchestrated
	}
	return nil
}

// Position returns the cached projection for (wallet, asset), falling back
// to a fresh chain snapshot on a cache miss.
func (s *PositionService) Position(ctx context.Context, wallet common.Address, assetKey string) (domain.Position, error) {
	asset, err := s.assets.Get(assetKey)
	if err != nil {
		return domain.Position{}, err
	}
	if s.cache != nil {
		pos, err := s.cache.Get(ctx, wallet, assetKey)
		if err == nil {
			return pos, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("position cache read failed",
				slog.String("asset", assetKey),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.reconciler.Snapshot(ctx, wallet, asset)
}

// Positions returns the projection for every registered asset.
func (s *PositionService) Positions(ctx context.Context, wallet common.Address) ([]domain.Position, error) {
	assets := s.assets.List()
	out := make([]domain.Position, 0, len(assets))
	for _, a := range assets {
		pos, err := s.Position(ctx, wallet, a.Key)
		if err != nil {
			return nil, fmt.Errorf("service: snapshot %s: %w", a.Key, err)
		}
		out = append(out, pos)
	}
	return out, nil
}

// ClaimYield claims accrued yield for the asset. viaFactory routes the claim
// through the factory, which settles yield for the whole market; the direct
// path claims on the SY token only. Confirmation publishes the yield-claimed
// event that drives cross-session refreshes.
func (s *PositionService) ClaimYield(ctx context.Context, wallet common.Address, assetKey string, viaFactory bool) (domain.PendingTransaction, error) {
	if err := s.checkWallet(wallet); err != nil {
		return domain.PendingTransaction{}, err
	}
	asset, err := s.assets.Get(assetKey)
	if err != nil {
		return domain.PendingTransaction{}, err
	}

	var tx domain.PendingTransaction
	if viaFactory {
		tx, err = s.gw.ClaimYieldViaFactory(ctx, asset.Factory, asset.SYToken)
	} else {
		tx, err = s.gw.ClaimYield(ctx, asset.SYToken)
	}
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("service: claim yield for %s: %w", assetKey, err)
	}

	confirmed, err := s.settle(ctx, wallet, asset, tx, nil)
	if err != nil {
		return confirmed, err
	}

	if s.bus != nil {
		evt := domain.Event{
			Topic:    domain.TopicYieldClaimed,
			AssetKey: asset.Key,
			Wallet:   wallet,
			TxHash:   confirmed.Hash,
			At:       time.Now().UTC(),
		}
		if pubErr := s.bus.Publish(ctx, evt); pubErr != nil {
			s.logger.Warn("yield event publish failed", slog.String("error", pubErr.Error()))
		}
	}
	return confirmed, nil
}

// Unwrap converts SY back into the underlying asset.
func (s *PositionService) Unwrap(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error) {
	if err := s.checkWallet(wallet); err != nil {
		return domain.PendingTransaction{}, err
	}
	asset, err := s.assets.Get(assetKey)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.PendingTransaction{}, domain.ErrInvalidAmount
	}
	tx, err := s.gw.Unwrap(ctx, asset.SYToken, amount)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("service: unwrap %s: %w", assetKey, err)
	}
	return s.settle(ctx, wallet, asset, tx, amount)
}

// RedeemPT redeems matured principal tokens through the factory.
func (s *PositionService) RedeemPT(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error) {
	if err := s.checkWallet(wallet); err != nil {
		return domain.PendingTransaction{}, err
	}
	asset, err := s.assets.Get(assetKey)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.PendingTransaction{}, domain.ErrInvalidAmount
	}
	tx, err := s.gw.RedeemTokens(ctx, asset.Factory, asset.SYToken, amount)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("service: redeem %s: %w", assetKey, err)
	}
	return s.settle(ctx, wallet, asset, tx, amount)
}

// FaucetMint mints test tokens on the underlying asset's faucet. Testnet
// convenience only. The wallet check is skipped here: minting credits the
// named wallet directly, so any recipient is coherent.
func (s *PositionService) FaucetMint(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error) {
	asset, err := s.assets.Get(assetKey)
	if err != nil {
		return domain.PendingTransaction{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.PendingTransaction{}, domain.ErrInvalidAmount
	}
	tx, err := s.gw.Mint(ctx, asset.Underlying, wallet, amount)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("service: faucet mint %s: %w", assetKey, err)
	}
	return s.settle(ctx, wallet, asset, tx, amount)
}

// History returns the persisted ledger rows for a wallet, newest first.
func (s *PositionService) History(ctx context.Context, wallet common.Address, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.ListByWallet(ctx, wallet, opts)
}

// settle waits out confirmation, records the ledger row, and triggers a
// reconciliation. All single-write flows share this tail.
func (s *PositionService) settle(ctx context.Context, wallet common.Address, asset domain.Asset, tx domain.PendingTransaction, amount *big.Int) (domain.PendingTransaction, error) {
	entryID := s.record(ctx, wallet, asset, tx, amount)

	confirmed, err := s.gw.WaitConfirmed(ctx, tx)
	s.recordOutcome(ctx, entryID, err)
	if err != nil {
		return confirmed, fmt.Errorf("service: %s on %s: %w", tx.Kind, asset.Key, err)
	}

	if s.cache != nil {
		if invErr := s.cache.Invalidate(ctx, wallet, asset.Key); invErr != nil {
			s.logger.Warn("cache invalidation failed", slog.String("error", invErr.Error()))
		}
	}
	if s.reconciler != nil {
		s.reconciler.Trigger(wallet, asset)
	}
	return confirmed, nil
}

func (s *PositionService) record(ctx context.Context, wallet common.Address, asset domain.Asset, tx domain.PendingTransaction, amount *big.Int) string {
	if s.ledger == nil {
		return ""
	}
	id := uuid.New().String()
	entry := domain.LedgerEntry{
		ID:        id,
		Wallet:    wallet,
		AssetKey:  asset.Key,
		Kind:      tx.Kind,
		TxHash:    tx.Hash,
		Amount:    amount,
		Status:    domain.TxStatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("ledger append failed", slog.String("error", err.Error()))
		return ""
	}
	return id
}

func (s *PositionService) recordOutcome(ctx context.Context, entryID string, waitErr error) {
	if s.ledger == nil || entryID == "" {
		return
	}
	status := domain.TxStatusConfirmed
	var confirmedAt *time.Time
	if waitErr == nil {
		now := time.Now().UTC()
		confirmedAt = &now
	} else if errors.Is(waitErr, domain.ErrTransactionReverted) {
		status = domain.TxStatusReverted
	} else {
		return
	}
	if err := s.ledger.UpdateStatus(ctx, entryID, status, confirmedAt); err != nil {
		s.logger.Warn("ledger status update failed", slog.String("error", err.Error()))
	}
}
