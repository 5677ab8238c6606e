package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainGateway is the capability boundary to the remote ledger. Reads are
// idempotent; writes are not. Every write returns a PendingTransaction
// submission handle, and success is only knowable after WaitConfirmed
// resolves. A write can fail two distinct ways, and callers must be able to
// tell them apart because the recovery differs:
//
//   - at submission (signer rejection, gas estimation): ErrSubmissionRejected
//   - at inclusion (revert): ErrTransactionReverted, usually as a
//     *RevertError carrying the decoded reason
type ChainGateway interface {
	// --- reads ---

	// BalanceOf returns the ERC-20 balance of owner on token.
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// AllowanceOf returns the amount spender may move on owner's behalf.
	AllowanceOf(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// MarketOf returns the tokenization market for an SY token, or
	// ErrMarketNotFound when none has been created yet. Absence is an
	// expected state, not a failure.
	MarketOf(ctx context.Context, factory, syToken common.Address) (Market, error)

	// ClaimableYieldOf returns the yield currently claimable by user for the
	// given SY token via the factory.
	ClaimableYieldOf(ctx context.Context, factory, syToken, user common.Address) (*big.Int, error)

	// --- writes ---

	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (PendingTransaction, error)
	Mint(ctx context.Context, asset, to common.Address, amount *big.Int) (PendingTransaction, error)
	Wrap(ctx context.Context, syToken common.Address, amount *big.Int) (PendingTransaction, error)
	Unwrap(ctx context.Context, syToken common.Address, amount *big.Int) (PendingTransaction, error)
	ClaimYield(ctx context.Context, syToken common.Address) (PendingTransaction, error)
	ClaimYieldViaFactory(ctx context.Context, factory, syToken common.Address) (PendingTransaction, error)
	RedeemTokens(ctx context.Context, factory, syToken common.Address, amount *big.Int) (PendingTransaction, error)
	CreateMarket(ctx context.Context, factory, syToken common.Address, maturity time.Duration, ptName, ptSymbol, ytName, ytSymbol string) (PendingTransaction, error)
	SplitTokens(ctx context.Context, factory, syToken common.Address, amount, minPT, minYT *big.Int) (PendingTransaction, error)

	// WaitConfirmed blocks until the transaction is mined or the bounded
	// polling budget is exhausted. It returns the handle with Status set to
	// confirmed, a *RevertError on inclusion failure, or
	// ErrConfirmationTimeout when the budget runs out (the transaction may
	// still confirm later; the reconciler's next pass picks up the truth).
	WaitConfirmed(ctx context.Context, tx PendingTransaction) (PendingTransaction, error)
}
