package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Asset describes one tokenizable yield-bearing asset and the three on-chain
// addresses every flow needs: the underlying ERC-20, its SY wrapper, and the
// factory that splits SY into PT and YT.
type Asset struct {
	// Key is the registry lookup key, e.g. "stcore".
	Key string `json:"key"`

	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`

	// DisplayAPY is the advertised yield, display-only. It is never used in
	// any on-chain computation.
	DisplayAPY float64 `json:"display_apy"`

	Underlying common.Address `json:"underlying"`
	SYToken    common.Address `json:"sy_token"`
	Factory    common.Address `json:"factory"`

	// MaturityDuration is passed to createMarket when the market-creation
	// remediation path runs for this asset.
	MaturityDuration time.Duration `json:"maturity_duration"`
}

// PTName and friends derive the token metadata used when a market is created
// for this asset.
func (a Asset) PTName() string   { return "Principal Token " + a.Symbol }
func (a Asset) PTSymbol() string { return "PT-" + a.Symbol }
func (a Asset) YTName() string   { return "Yield Token " + a.Symbol }
func (a Asset) YTSymbol() string { return "YT-" + a.Symbol }
