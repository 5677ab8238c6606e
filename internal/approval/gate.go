// Package approval decides whether an ERC-20 approval transaction is needed
// before a spend can succeed. It is pure decision logic over amounts; reading
// the allowance and submitting the approval live elsewhere.
package approval

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// NeedsApproval reports whether an approval is required to spend requested
// against cachedAllowance. A nil allowance means the value was never fetched
// and is treated as requiring approval. The caller should pass a freshly
// refetched allowance immediately before submission; a stale read can only
// diverge if another operation from the same wallet is in flight, which the
// orchestrator's step guard already excludes.
func NeedsApproval(requested, cachedAllowance *big.Int) bool {
	if cachedAllowance == nil {
		return true
	}
	return requested.Cmp(cachedAllowance) > 0
}

// Gate binds the decision function to one concrete (token, spender)
// relationship. Two independent gates exist per asset: the underlying asset
// approving the SY token (wrap), and the SY token approving the factory
// (split). Keeping them as distinct values prevents the conflation bug where
// one "approved" flag is consulted for both.
type Gate struct {
	Kind    domain.ApprovalKind
	Token   common.Address
	Spender common.Address
}

// AssetGate builds the asset→SY gate for an asset.
func AssetGate(a domain.Asset) Gate {
	return Gate{Kind: domain.ApprovalAsset, Token: a.Underlying, Spender: a.SYToken}
}

// SYGate builds the SY→factory gate for an asset.
func SYGate(a domain.Asset) Gate {
	return Gate{Kind: domain.ApprovalSY, Token: a.SYToken, Spender: a.Factory}
}

// Check returns nil when the allowance covers requested, otherwise a typed
// *domain.ApprovalRequiredError naming the exact relationship that is short.
func (g Gate) Check(requested, cachedAllowance *big.Int) error {
	if !NeedsApproval(requested, cachedAllowance) {
		return nil
	}
	return &domain.ApprovalRequiredError{
		Kind:    g.Kind,
		Token:   g.Token,
		Spender: g.Spender,
	}
}
