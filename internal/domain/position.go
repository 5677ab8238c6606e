package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the per-(wallet, asset) read-through projection of ledger
// state: the five balances the UI renders. It is recomputed from ChainGateway
// reads and is eventually consistent with the chain, never authoritative at
// read time. No component owns it; the reconciler refreshes it after every
// confirmed transaction and on a background cadence.
type Position struct {
	Wallet   common.Address `json:"wallet"`
	AssetKey string         `json:"asset"`

	UnderlyingBalance *big.Int `json:"underlying_balance"`
	SYBalance         *big.Int `json:"sy_balance"`
	PTBalance         *big.Int `json:"pt_balance"`
	YTBalance         *big.Int `json:"yt_balance"`
	ClaimableYield    *big.Int `json:"claimable_yield"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Market describes one tokenization market: the (sy, pt, yt, maturity)
// tuple created once per SY token by the factory. Absence of a market is an
// expected state until the first split, not an error.
type Market struct {
	SYToken  common.Address `json:"sy_token"`
	PTToken  common.Address `json:"pt_token"`
	YTToken  common.Address `json:"yt_token"`
	Maturity time.Time      `json:"maturity"`
	Active   bool           `json:"active"`
}
