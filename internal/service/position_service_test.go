package service

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/bus"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
)

var wallet = common.HexToAddress("0x7777777777777777777777777777777777777777")

type stubGateway struct {
	mu     sync.Mutex
	nonce  uint64
	calls  []string
	revert bool
}

func (g *stubGateway) tx(kind domain.TxKind, name string) (domain.PendingTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nonce++
	g.calls = append(g.calls, name)
	hash := crypto.Keccak256Hash([]byte(name), big.NewInt(int64(g.nonce)).Bytes())
	return domain.PendingTransaction{Kind: kind, Hash: hash, Status: domain.TxStatusSubmitted}, nil
}

func (g *stubGateway) BalanceOf(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (g *stubGateway) AllowanceOf(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (g *stubGateway) MarketOf(context.Context, common.Address, common.Address) (domain.Market, error) {
	return domain.Market{}, domain.ErrMarketNotFound
}
func (g *stubGateway) ClaimableYieldOf(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (g *stubGateway) Approve(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindApprove, "approve")
}
func (g *stubGateway) Mint(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindMint, "mint")
}
func (g *stubGateway) Wrap(context.Context, common.Address, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindWrap, "wrap")
}
func (g *stubGateway) Unwrap(context.Context, common.Address, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindUnwrap, "unwrap")
}
func (g *stubGateway) ClaimYield(context.Context, common.Address) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindClaimYield, "claimYield")
}
func (g *stubGateway) ClaimYieldViaFactory(context.Context, common.Address, common.Address) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindClaimYield, "claimYieldViaFactory")
}
func (g *stubGateway) RedeemTokens(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindRedeem, "redeemTokens")
}
func (g *stubGateway) CreateMarket(context.Context, common.Address, common.Address, time.Duration, string, string, string, string) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindCreateMarket, "createMarket")
}
func (g *stubGateway) SplitTokens(context.Context, common.Address, common.Address, *big.Int, *big.Int, *big.Int) (domain.PendingTransaction, error) {
	return g.tx(domain.TxKindSplit, "splitTokens")
}
func (g *stubGateway) WaitConfirmed(_ context.Context, tx domain.PendingTransaction) (domain.PendingTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revert {
		return tx, &domain.RevertError{TxHash: tx.Hash, Reason: "nope"}
	}
	tx.Status = domain.TxStatusConfirmed
	return tx, nil
}

var _ domain.ChainGateway = (*stubGateway)(nil)

type stubReconciler struct {
	mu       sync.Mutex
	triggers int
}

func (r *stubReconciler) Trigger(common.Address, domain.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers++
}

func (r *stubReconciler) Snapshot(_ context.Context, w common.Address, a domain.Asset) (domain.Position, error) {
	return domain.Position{
		Wallet:            w,
		AssetKey:          a.Key,
		UnderlyingBalance: big.NewInt(42),
		SYBalance:         big.NewInt(0),
		PTBalance:         big.NewInt(0),
		YTBalance:         big.NewInt(0),
		ClaimableYield:    big.NewInt(0),
	}, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (l *memLedger) Append(_ context.Context, e domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memLedger) UpdateStatus(_ context.Context, id string, status domain.TxStatus, confirmedAt *time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Status = status
			l.entries[i].ConfirmedAt = confirmedAt
		}
	}
	return nil
}

func (l *memLedger) ListByWallet(_ context.Context, w common.Address, _ domain.ListOpts) ([]domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range l.entries {
		if e.Wallet == w {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memLedger) ListBefore(context.Context, time.Time) ([]domain.LedgerEntry, error) {
	return nil, nil
}
func (l *memLedger) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

var _ domain.TxLedgerStore = (*memLedger)(nil)

func newTestService(gw domain.ChainGateway, b domain.EventBus, ledger domain.TxLedgerStore) (*PositionService, *stubReconciler) {
	rec := &stubReconciler{}
	return New(gw, wallet, registry.New(), rec, nil, b, ledger, slog.New(slog.DiscardHandler)), rec
}

func TestPositionFallsBackToSnapshot(t *testing.T) {
	svc, _ := newTestService(&stubGateway{}, nil, nil)
	pos, err := svc.Position(context.Background(), wallet, "stcore")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), pos.UnderlyingBalance)

	_, err = svc.Position(context.Background(), wallet, "nope")
	require.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestPositionsCoverAllAssets(t *testing.T) {
	svc, _ := newTestService(&stubGateway{}, nil, nil)
	positions, err := svc.Positions(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, positions, len(registry.New().List()))
}

func TestClaimYieldPublishesEvent(t *testing.T) {
	gw := &stubGateway{}
	b := bus.NewMemory(slog.New(slog.DiscardHandler))
	svc, rec := newTestService(gw, b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	claims, err := b.Subscribe(ctx, domain.TopicYieldClaimed)
	require.NoError(t, err)

	tx, err := svc.ClaimYield(ctx, wallet, "stcore", false)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusConfirmed, tx.Status)
	require.Equal(t, []string{"claimYield"}, gw.calls)
	require.Equal(t, 1, rec.triggers)

	select {
	case evt := <-claims:
		require.Equal(t, "stcore", evt.AssetKey)
		require.Equal(t, tx.Hash, evt.TxHash)
	case <-time.After(time.Second):
		t.Fatal("yield claimed event not published")
	}
}

func TestClaimYieldViaFactoryRoutesToFactory(t *testing.T) {
	gw := &stubGateway{}
	svc, _ := newTestService(gw, nil, nil)

	_, err := svc.ClaimYield(context.Background(), wallet, "stcore", true)
	require.NoError(t, err)
	require.Equal(t, []string{"claimYieldViaFactory"}, gw.calls)
}

func TestWritesRecordLedgerRows(t *testing.T) {
	gw := &stubGateway{}
	ledger := &memLedger{}
	svc, _ := newTestService(gw, nil, ledger)
	ctx := context.Background()

	_, err := svc.Unwrap(ctx, wallet, "stcore", big.NewInt(100))
	require.NoError(t, err)
	_, err = svc.FaucetMint(ctx, wallet, "stcore", big.NewInt(1000))
	require.NoError(t, err)

	rows, err := svc.History(ctx, wallet, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, domain.TxStatusConfirmed, row.Status)
		require.NotNil(t, row.ConfirmedAt)
	}
}

func TestRevertedWriteMarksLedgerRow(t *testing.T) {
	gw := &stubGateway{revert: true}
	ledger := &memLedger{}
	svc, _ := newTestService(gw, nil, ledger)

	_, err := svc.RedeemPT(context.Background(), wallet, "stcore", big.NewInt(10))
	require.ErrorIs(t, err, domain.ErrTransactionReverted)

	rows, err := svc.History(context.Background(), wallet, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.TxStatusReverted, rows[0].Status)
}

func TestInvalidAmounts(t *testing.T) {
	svc, _ := newTestService(&stubGateway{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Unwrap(ctx, wallet, "stcore", big.NewInt(0))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.RedeemPT(ctx, wallet, "stcore", nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.FaucetMint(ctx, wallet, "stcore", big.NewInt(-5))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestForeignWalletWritesRejected(t *testing.T) {
	gw := &stubGateway{}
	svc, _ := newTestService(gw, nil, nil)
	ctx := context.Background()
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")

	_, err := svc.ClaimYield(ctx, other, "stcore", false)
	require.ErrorIs(t, err, domain.ErrWalletNotOrchestrated)
	_, err = svc.Unwrap(ctx, other, "stcore", big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrWalletNotOrchestrated)
	_, err = svc.RedeemPT(ctx, other, "stcore", big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrWalletNotOrchestrated)
	require.Empty(t, gw.calls)

	// Faucet mints credit the named wallet directly, so any recipient is fine.
	_, err = svc.FaucetMint(ctx, other, "stcore", big.NewInt(1))
	require.NoError(t, err)
}
