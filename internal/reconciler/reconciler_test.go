package reconciler

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/bus"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/retry"
)

var wallet = common.HexToAddress("0x4444444444444444444444444444444444444444")

// readGateway serves scripted reads; writes are never exercised by the
// reconciler.
type readGateway struct {
	mu        sync.Mutex
	balances  map[common.Address]int64
	claimable int64
	market    *domain.Market
	reads     int
}

func (g *readGateway) BalanceOf(_ context.Context, token, _ common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	return big.NewInt(g.balances[token]), nil
}

func (g *readGateway) AllowanceOf(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (g *readGateway) MarketOf(context.Context, common.Address, common.Address) (domain.Market, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.market == nil {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return *g.market, nil
}

func (g *readGateway) ClaimableYieldOf(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return big.NewInt(g.claimable), nil
}

func (g *readGateway) Approve(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) Mint(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) Wrap(context.Context, common.Address, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) Unwrap(context.Context, common.Address, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) ClaimYield(context.Context, common.Address) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) ClaimYieldViaFactory(context.Context, common.Address, common.Address) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) RedeemTokens(context.Context, common.Address, common.Address, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) CreateMarket(context.Context, common.Address, common.Address, time.Duration, string, string, string, string) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) SplitTokens(context.Context, common.Address, common.Address, *big.Int, *big.Int, *big.Int) (domain.PendingTransaction, error) {
	panic("not used")
}
func (g *readGateway) WaitConfirmed(_ context.Context, tx domain.PendingTransaction) (domain.PendingTransaction, error) {
	panic("not used")
}

var _ domain.ChainGateway = (*readGateway)(nil)

type memCache struct {
	mu  sync.Mutex
	set []domain.Position
}

func (c *memCache) Set(_ context.Context, pos domain.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = append(c.set, pos)
	return nil
}

func (c *memCache) Get(context.Context, common.Address, string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func (c *memCache) Invalidate(context.Context, common.Address, string) error { return nil }

func testAsset(t *testing.T) domain.Asset {
	t.Helper()
	a, err := registry.New().Get("stcore")
	require.NoError(t, err)
	return a
}

func newTestReconciler(gw domain.ChainGateway, cache domain.PositionCache, b domain.EventBus) *Reconciler {
	cfg := Config{Schedule: retry.Policy{MaxAttempts: 2, Interval: time.Millisecond}}
	return New(gw, registry.New(), cache, b, cfg, slog.New(slog.DiscardHandler))
}

func TestSnapshotWithMarket(t *testing.T) {
	a := testAsset(t)
	pt := common.HexToAddress("0x5555555555555555555555555555555555555555")
	yt := common.HexToAddress("0x6666666666666666666666666666666666666666")
	gw := &readGateway{
		balances: map[common.Address]int64{
			a.Underlying: 1000,
			a.SYToken:    500,
			pt:           200,
			yt:           200,
		},
		claimable: 7,
		market:    &domain.Market{SYToken: a.SYToken, PTToken: pt, YTToken: yt, Active: true},
	}
	cache := &memCache{}
	r := newTestReconciler(gw, cache, nil)

	pos, err := r.Snapshot(context.Background(), wallet, a)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), pos.UnderlyingBalance)
	require.Equal(t, big.NewInt(500), pos.SYBalance)
	require.Equal(t, big.NewInt(200), pos.PTBalance)
	require.Equal(t, big.NewInt(200), pos.YTBalance)
	require.Equal(t, big.NewInt(7), pos.ClaimableYield)
	require.Len(t, cache.set, 1)
}

func TestSnapshotWithoutMarketZeroesPTYT(t *testing.T) {
	a := testAsset(t)
	gw := &readGateway{balances: map[common.Address]int64{a.Underlying: 1000}}
	r := newTestReconciler(gw, nil, nil)

	pos, err := r.Snapshot(context.Background(), wallet, a)
	require.NoError(t, err)
	require.Zero(t, pos.PTBalance.Sign())
	require.Zero(t, pos.YTBalance.Sign())
}

func TestTriggerPublishesSnapshots(t *testing.T) {
	a := testAsset(t)
	gw := &readGateway{balances: map[common.Address]int64{a.SYToken: 500}}
	b := bus.NewMemory(slog.New(slog.DiscardHandler))
	r := newTestReconciler(gw, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := b.Subscribe(ctx, domain.TopicPositionUpdated)
	require.NoError(t, err)

	go func() { _ = r.Run(ctx) }()
	r.Trigger(wallet, a)

	// The schedule runs two passes, each publishing one snapshot.
	for i := 0; i < 2; i++ {
		select {
		case evt := <-updates:
			require.Equal(t, a.Key, evt.AssetKey)
			require.NotNil(t, evt.Position)
			require.Equal(t, big.NewInt(500), evt.Position.SYBalance)
		case <-time.After(time.Second):
			t.Fatalf("snapshot %d not published", i+1)
		}
	}
}

func TestYieldClaimedEventTriggersRefresh(t *testing.T) {
	a := testAsset(t)
	gw := &readGateway{balances: map[common.Address]int64{a.SYToken: 500}}
	b := bus.NewMemory(slog.New(slog.DiscardHandler))
	r := newTestReconciler(gw, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := b.Subscribe(ctx, domain.TopicPositionUpdated)
	require.NoError(t, err)

	go func() { _ = r.Run(ctx) }()
	// Give Run a moment to install its yield-claimed subscription.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, domain.Event{Topic: domain.TopicYieldClaimed, Wallet: wallet, AssetKey: a.Key}))

	select {
	case evt := <-updates:
		require.Equal(t, wallet, evt.Wallet)
	case <-time.After(2 * time.Second):
		t.Fatal("yield claim did not trigger a refresh")
	}
}
