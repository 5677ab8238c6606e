package approval

import (
	"errors"
	"math/big"
	"testing"
	"testing/quick"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

func TestNeedsApproval(t *testing.T) {
	cases := []struct {
		name      string
		requested string
		allowance string // "" means nil (never fetched)
		want      bool
	}{
		{"nil allowance", "100", "", true},
		{"zero allowance", "1", "0", true},
		{"requested above allowance", "101", "100", true},
		{"requested equals allowance", "100", "100", false},
		{"requested below allowance", "99", "100", false},
		{"zero requested, zero allowance", "0", "0", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, ok := new(big.Int).SetString(tc.requested, 10)
			require.True(t, ok)
			var allowance *big.Int
			if tc.allowance != "" {
				allowance, ok = new(big.Int).SetString(tc.allowance, 10)
				require.True(t, ok)
			}
			require.Equal(t, tc.want, NeedsApproval(req, allowance))
		})
	}
}

// The gate must agree with the plain comparison for any (requested,
// allowance) pair, independent of which token or spender it guards.
func TestNeedsApprovalProperty(t *testing.T) {
	prop := func(req, allow uint64) bool {
		r := new(big.Int).SetUint64(req)
		a := new(big.Int).SetUint64(allow)
		return NeedsApproval(r, a) == (req > allow)
	}
	require.NoError(t, quick.Check(prop, &quick.Config{MaxCount: 2000}))

	// Boundary equality at word-scale values.
	propEq := func(v uint64) bool {
		n := new(big.Int).SetUint64(v)
		return !NeedsApproval(n, new(big.Int).Set(n))
	}
	require.NoError(t, quick.Check(propEq, nil))
}

func TestGateCheckKinds(t *testing.T) {
	asset := domain.Asset{
		Underlying: common.HexToAddress("0x01"),
		SYToken:    common.HexToAddress("0x02"),
		Factory:    common.HexToAddress("0x03"),
	}

	assetGate := AssetGate(asset)
	syGate := SYGate(asset)

	// Same shortfall, two distinct typed errors.
	err := assetGate.Check(big.NewInt(10), big.NewInt(5))
	require.Error(t, err)
	var aerr *domain.ApprovalRequiredError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, domain.ApprovalAsset, aerr.Kind)
	require.Equal(t, asset.Underlying, aerr.Token)
	require.Equal(t, asset.SYToken, aerr.Spender)
	require.True(t, errors.Is(err, domain.ErrApprovalRequired))

	err = syGate.Check(big.NewInt(10), nil)
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, domain.ApprovalSY, aerr.Kind)
	require.Equal(t, asset.SYToken, aerr.Token)
	require.Equal(t, asset.Factory, aerr.Spender)

	// Sufficient SY allowance must not satisfy the asset gate.
	require.Error(t, assetGate.Check(big.NewInt(10), big.NewInt(0)))
	require.NoError(t, syGate.Check(big.NewInt(10), big.NewInt(10)))
}
