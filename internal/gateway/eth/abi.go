package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the three contract surfaces the orchestrator
// touches. Kept as JSON literals, parsed once at package init.

const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"mint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const syTokenABIJSON = `[
  {"name":"wrap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"name":"unwrap","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"name":"claimYield","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const factoryABIJSON = `[
  {"name":"createMarket","type":"function","stateMutability":"nonpayable","inputs":[{"name":"syToken","type":"address"},{"name":"maturityDuration","type":"uint256"},{"name":"ptName","type":"string"},{"name":"ptSymbol","type":"string"},{"name":"ytName","type":"string"},{"name":"ytSymbol","type":"string"}],"outputs":[]},
  {"name":"splitTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"syToken","type":"address"},{"name":"syAmount","type":"uint256"},{"name":"minPT","type":"uint256"},{"name":"minYT","type":"uint256"}],"outputs":[]},
  {"name":"claimYield","type":"function","stateMutability":"nonpayable","inputs":[{"name":"syToken","type":"address"}],"outputs":[]},
  {"name":"redeemTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"syToken","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"name":"getMarket","type":"function","stateMutability":"view","inputs":[{"name":"syToken","type":"address"}],"outputs":[{"name":"syToken","type":"address"},{"name":"ptToken","type":"address"},{"name":"ytToken","type":"address"},{"name":"maturity","type":"uint256"},{"name":"active","type":"bool"}]},
  {"name":"getClaimableYield","type":"function","stateMutability":"view","inputs":[{"name":"syToken","type":"address"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	erc20ABI   = mustParseABI(erc20ABIJSON)
	syTokenABI = mustParseABI(syTokenABIJSON)
	factoryABI = mustParseABI(factoryABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("eth: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
