// Package registry holds the static mapping from an asset key to its
// metadata and the three on-chain addresses every flow needs. Pure lookup,
// no state beyond construction.
package registry

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

const defaultMaturity = 365 * 24 * time.Hour

// builtins are the assets supported out of the box on the Core testnet
// deployment. Additional assets can be layered on from configuration.
var builtins = []domain.Asset{
	{
		Key:              "stcore",
		Symbol:           "stCORE",
		Name:             "Liquid Staked CORE",
		Decimals:         18,
		DisplayAPY:       8.5,
		Underlying:       common.HexToAddress("0x6401f24EF7C54032f4F54E67492928973Ab87650"),
		SYToken:          common.HexToAddress("0x3B9241309499Ce2a17c36dfd2Cf0abD82E10206C"),
		Factory:          common.HexToAddress("0x63C46d782D1B27Aee79778d2f5D271E24bA0EB10"),
		MaturityDuration: defaultMaturity,
	},
	{
		Key:              "lstbtc",
		Symbol:           "lstBTC",
		Name:             "Liquid Staked BTC",
		Decimals:         18,
		DisplayAPY:       3.2,
		Underlying:       common.HexToAddress("0x4f7F2a2a9B6e59C9dF15a6528b52f6Bb9a841f88"),
		SYToken:          common.HexToAddress("0x8D0c9c5fC0e93a2bA9eD342cCD0a1aD96fBE390b"),
		Factory:          common.HexToAddress("0x63C46d782D1B27Aee79778d2f5D271E24bA0EB10"),
		MaturityDuration: defaultMaturity,
	},
	{
		Key:              "dualcore",
		Symbol:           "dualCORE",
		Name:             "Dual Staked CORE",
		Decimals:         18,
		DisplayAPY:       12.1,
		Underlying:       common.HexToAddress("0xA20Ff9e0B9B1de3c11E6fAb5E9cB6cE9bBd1F8C3"),
		SYToken:          common.HexToAddress("0x1cF06e0bC2F2bb9E3cA0Bd2E1cf96d5aD1c43A07"),
		Factory:          common.HexToAddress("0x63C46d782D1B27Aee79778d2f5D271E24bA0EB10"),
		MaturityDuration: defaultMaturity,
	},
}

// AssetRegistry resolves asset keys to asset metadata.
type AssetRegistry struct {
	byKey map[string]domain.Asset
}

// New builds a registry from the built-in asset set plus any extra assets
// (typically sourced from configuration). Extras with a key colliding with a
// built-in override it.
func New(extra ...domain.Asset) *AssetRegistry {
	r := &AssetRegistry{byKey: make(map[string]domain.Asset)}
	for _, a := range builtins {
		r.byKey[a.Key] = a
	}
	for _, a := range extra {
		if a.MaturityDuration == 0 {
			a.MaturityDuration = defaultMaturity
		}
		r.byKey[a.Key] = a
	}
	return r
}

// Get resolves an asset by its registry key. It returns
// domain.ErrUnknownAsset for misses.
func (r *AssetRegistry) Get(key string) (domain.Asset, error) {
	a, ok := r.byKey[key]
	if !ok {
		return domain.Asset{}, domain.ErrUnknownAsset
	}
	return a, nil
}

// List returns all registered assets in deterministic key order.
func (r *AssetRegistry) List() []domain.Asset {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Asset, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.byKey[k])
	}
	return out
}
