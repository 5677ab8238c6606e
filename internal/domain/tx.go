package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind identifies a write operation against the ledger contracts.
type TxKind string

const (
	TxKindMint         TxKind = "mint"
	TxKindApprove      TxKind = "approve"
	TxKindWrap         TxKind = "wrap"
	TxKindUnwrap       TxKind = "unwrap"
	TxKindSplit        TxKind = "split"
	TxKindRedeem       TxKind = "redeem"
	TxKindClaimYield   TxKind = "claim_yield"
	TxKindCreateMarket TxKind = "create_market"
)

// TxStatus is the lifecycle of a submitted transaction.
type TxStatus string

const (
	TxStatusSubmitted TxStatus = "submitted"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusReverted  TxStatus = "reverted"
)

// PendingTransaction is the submission handle a ChainGateway write returns.
// Confirmation is a separate asynchronous step; until WaitConfirmed resolves,
// Status stays submitted.
type PendingTransaction struct {
	Kind   TxKind      `json:"kind"`
	Hash   common.Hash `json:"hash"`
	Status TxStatus    `json:"status"`
}

// LedgerEntry is one row of the append-only per-wallet transaction history.
// The ledger is display-only; the orchestrator never reads it for
// correctness.
type LedgerEntry struct {
	ID          string         `json:"id"`
	Wallet      common.Address `json:"wallet"`
	AssetKey    string         `json:"asset"`
	Kind        TxKind         `json:"kind"`
	TxHash      common.Hash    `json:"tx_hash"`
	Amount      *big.Int       `json:"amount"`
	Status      TxStatus       `json:"status"`
	Message     string         `json:"message,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`
}
