package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrOperationInProgress   = errors.New("operation already in progress")
	ErrApprovalRequired      = errors.New("approval required")
	ErrApprovalTimeout       = errors.New("approval not confirmed in time")
	ErrMarketNotFound        = errors.New("market not found")
	ErrNoBalanceToSplit      = errors.New("no SY balance to split")
	ErrSubmissionRejected    = errors.New("transaction submission rejected")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrConfirmationTimeout   = errors.New("confirmation not observed in time")
	ErrReconciliationTimeout = errors.New("balances did not settle in time")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrWalletNotOrchestrated = errors.New("wallet is not the orchestrated signing wallet")
)

// ApprovalRequiredError is returned when an operation was not submitted
// because the freshly read allowance does not cover the requested amount.
// Kind identifies which of the two approval relationships is short: the
// underlying asset approving the SY token, or the SY token approving the
// factory. The two are independent; having one says nothing about the other.
type ApprovalRequiredError struct {
	Kind    ApprovalKind
	Token   common.Address
	Spender common.Address
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("approval required (%s): token %s must approve spender %s",
		e.Kind, e.Token.Hex(), e.Spender.Hex())
}

// Unwrap makes errors.Is(err, ErrApprovalRequired) work across the
// orchestrator boundary.
func (e *ApprovalRequiredError) Unwrap() error { return ErrApprovalRequired }

// RevertError is returned when a transaction was included in a block but
// failed. Reason carries the decoded contract revert string when the node
// made it available, otherwise it is empty.
type RevertError struct {
	TxHash common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash.Hex(), e.Reason)
}

func (e *RevertError) Unwrap() error { return ErrTransactionReverted }
