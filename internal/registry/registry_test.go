package registry

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

func TestGetBuiltin(t *testing.T) {
	r := New()

	a, err := r.Get("stcore")
	require.NoError(t, err)
	require.Equal(t, "stCORE", a.Symbol)
	require.Equal(t, 18, a.Decimals)
	require.NotEqual(t, common.Address{}, a.Underlying)
	require.NotEqual(t, common.Address{}, a.SYToken)
	require.NotEqual(t, common.Address{}, a.Factory)
	require.Equal(t, 365*24*time.Hour, a.MaturityDuration)
}

func TestGetUnknown(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	require.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestExtraAssetAndOverride(t *testing.T) {
	extra := domain.Asset{
		Key:        "wbtc",
		Symbol:     "WBTC",
		Decimals:   8,
		Underlying: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
		SYToken:    common.HexToAddress("0x11"),
		Factory:    common.HexToAddress("0x12"),
	}
	r := New(extra)

	a, err := r.Get("wbtc")
	require.NoError(t, err)
	require.Equal(t, 8, a.Decimals)
	require.Equal(t, extra.SYToken, a.SYToken)
	// Maturity defaulted when unset.
	require.NotZero(t, a.MaturityDuration)
}

// HexToAddress silently keeps the last 20 bytes of an over-long literal, so
// a mistyped address would come out shifted rather than fail loudly.
func TestBuiltinAddressesSurviveParsing(t *testing.T) {
	r := New()
	a, err := r.Get("dualcore")
	require.NoError(t, err)
	require.True(t, strings.EqualFold("0xA20Ff9e0B9B1de3c11E6fAb5E9cB6cE9bBd1F8C3", a.Underlying.Hex()))

	for _, a := range r.List() {
		require.NotEqual(t, common.Address{}, a.Underlying, a.Key)
		require.NotEqual(t, common.Address{}, a.SYToken, a.Key)
		require.NotEqual(t, common.Address{}, a.Factory, a.Key)
	}
}

func TestListIsDeterministic(t *testing.T) {
	r := New()
	first := r.List()
	second := r.List()
	require.Equal(t, first, second)
	require.GreaterOrEqual(t, len(first), 3)
	for i := 1; i < len(first); i++ {
		require.Less(t, first[i-1].Key, first[i].Key)
	}
}

func TestDerivedTokenNames(t *testing.T) {
	r := New()
	a, err := r.Get("stcore")
	require.NoError(t, err)
	require.Equal(t, "PT-stCORE", a.PTSymbol())
	require.Equal(t, "YT-stCORE", a.YTSymbol())
}
