package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Topic names an event stream on the bus.
type Topic string

const (
	// TopicYieldClaimed fans out a confirmed yield claim so sessions other
	// than the originating one refresh their balances.
	TopicYieldClaimed Topic = "yield_claimed"
	// TopicPositionUpdated carries fresh Position snapshots from the
	// reconciler.
	TopicPositionUpdated Topic = "position_updated"
	// TopicTxRecorded announces a new ledger entry.
	TopicTxRecorded Topic = "tx_recorded"
	// TopicMarketCreated announces a market-creation remediation completing.
	TopicMarketCreated Topic = "market_created"
)

// Event is the typed payload carried on the bus. Position is only set for
// TopicPositionUpdated.
type Event struct {
	Topic    Topic          `json:"topic"`
	AssetKey string         `json:"asset"`
	Wallet   common.Address `json:"wallet"`
	TxHash   common.Hash    `json:"tx_hash,omitempty"`
	Position *Position      `json:"position,omitempty"`
	At       time.Time      `json:"at"`
}

// EventBus is an explicit typed pub/sub channel between components and
// processes. Subscribe returns a channel that is closed when ctx is
// cancelled. Publishing never blocks on slow subscribers.
type EventBus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, topic Topic) (<-chan Event, error)
}
