package domain

import "time"

// Step is the orchestrator's state for one (wallet, asset) session. The step
// value itself is the mutual-exclusion guard for the session: every public
// entry point checks it before doing anything else. There is no separate
// lock object around an in-flight operation.
type Step string

const (
	StepIdle      Step = "idle"
	StepApproving Step = "approving"
	StepWrapping  Step = "wrapping"
	StepWaiting   Step = "waiting"
	StepSplitting Step = "splitting"
	StepComplete  Step = "complete"
)

// Busy reports whether the step blocks new intents. Waiting is deliberately
// not busy: a deposit confirmation that is still settling should not lock out
// the follow-up split.
func (s Step) Busy() bool {
	switch s {
	case StepApproving, StepWrapping, StepSplitting:
		return true
	default:
		return false
	}
}

// OrchestrationState is the externally visible snapshot of a session. It is
// created on first intent and reset to idle on terminal success, failure, or
// explicit operator reset.
type OrchestrationState struct {
	Step      Step      `json:"step"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalKind names which of the two independent allowance relationships an
// approval concerns.
type ApprovalKind string

const (
	// ApprovalAsset is the (underlying asset, SY-token-as-spender) pair that
	// gates wrapping.
	ApprovalAsset ApprovalKind = "asset"
	// ApprovalSY is the (SY token, factory-as-spender) pair that gates
	// splitting.
	ApprovalSY ApprovalKind = "sy"
)
