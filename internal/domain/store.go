package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TxLedgerStore persists the append-only per-wallet transaction history used
// purely for display.
type TxLedgerStore interface {
	Append(ctx context.Context, e LedgerEntry) error
	UpdateStatus(ctx context.Context, id string, status TxStatus, confirmedAt *time.Time) error
	ListByWallet(ctx context.Context, wallet common.Address, opts ListOpts) ([]LedgerEntry, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]LedgerEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PositionCache stores last-known Position snapshots so the UI can render
// stale-but-recent values while the reconciler converges on ledger truth.
type PositionCache interface {
	Set(ctx context.Context, pos Position) error
	Get(ctx context.Context, wallet common.Address, assetKey string) (Position, error)
	Invalidate(ctx context.Context, wallet common.Address, assetKey string) error
}
