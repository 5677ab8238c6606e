// Package orchestrator sequences the multi-step, fee-paying, possibly-failing
// chain transactions behind a single user intent (deposit, split,
// deposit-and-split) as an explicit finite-state machine. The per-session
// step value is the only mutual-exclusion primitive: every public entry
// point checks it before doing anything else, and at most one busy operation
// exists per (wallet, asset) session at any time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/approval"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/retry"
)

// Reconciler is the post-confirmation balance refresh hook. Trigger must not
// block; the reconciler runs its bounded re-read schedule on its own
// goroutine.
type Reconciler interface {
	Trigger(wallet common.Address, asset domain.Asset)
}

// Emitter maps orchestrator transitions to user-visible notifications. It is
// implemented by notify.Notifier.
type Emitter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes the orchestrator's bounded waits.
type Config struct {
	// Signer is the wallet the chain gateway signs with. Write intents naming
	// any other wallet are rejected up front: the allowance gate would read
	// the named wallet while the submitted transaction spends from the
	// signer, so the gate and the transaction would disagree about the owner.
	// The zero address disables the check.
	Signer common.Address

	// MarketPoll bounds how long Split waits for a freshly created market to
	// become readable after the createMarket confirmation.
	MarketPoll retry.Policy

	// BalancePoll bounds how long DepositAndSplit waits for the post-wrap SY
	// balance to become visible through lagging RPC reads.
	BalancePoll retry.Policy

	// CompleteCooldown is how long a session shows complete before
	// auto-expiring back to idle.
	CompleteCooldown time.Duration
}

// DefaultConfig returns the production wait budgets.
func DefaultConfig() Config {
	return Config{
		MarketPoll:       retry.Policy{MaxAttempts: 10, Interval: 2 * time.Second},
		BalancePoll:      retry.Policy{MaxAttempts: 5, Interval: 2 * time.Second},
		CompleteCooldown: 3 * time.Second,
	}
}

type sessionKey struct {
	wallet common.Address
	asset  string
}

// session is the orchestrator-owned state for one (wallet, asset) pair.
type session struct {
	mu        sync.Mutex
	step      domain.Step
	message   string
	updatedAt time.Time

	// marketCreated caps the remediation path at one createMarket per
	// session.
	marketCreated bool
}

// begin atomically checks the guard and claims the session for a new
// operation. It returns domain.ErrOperationInProgress, leaving the session
// untouched, when the step is busy. Waiting is deliberately not busy so a
// slow confirmation cannot wedge the UI; the underlying transaction is
// already sent either way.
func (s *session) begin(next domain.Step, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step.Busy() {
		return domain.ErrOperationInProgress
	}
	s.setLocked(next, msg)
	return nil
}

func (s *session) set(step domain.Step, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(step, msg)
}

func (s *session) setLocked(step domain.Step, msg string) {
	s.step = step
	s.message = msg
	s.updatedAt = time.Now().UTC()
}

func (s *session) state() domain.OrchestrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.step
	if step == "" {
		step = domain.StepIdle
	}
	return domain.OrchestrationState{Step: step, Message: s.message, UpdatedAt: s.updatedAt}
}

// Orchestrator drives user intents through the chain gateway.
type Orchestrator struct {
	gw         domain.ChainGateway
	assets     *registry.AssetRegistry
	reconciler Reconciler
	emitter    Emitter
	bus        domain.EventBus
	ledger     domain.TxLedgerStore // optional; recording is best-effort
	cfg        Config
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

// New creates an Orchestrator. reconciler, emitter, bus, and ledger may be
// nil; the corresponding side effects are skipped.
func New(
	gw domain.ChainGateway,
	assets *registry.AssetRegistry,
	reconciler Reconciler,
	emitter Emitter,
	bus domain.EventBus,
	ledger domain.TxLedgerStore,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		gw:         gw,
		assets:     assets,
		reconciler: reconciler,
		emitter:    emitter,
		bus:        bus,
		ledger:     ledger,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
		sessions:   make(map[sessionKey]*session),
	}
}

func (o *Orchestrator) session(wallet common.Address, assetKey string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := sessionKey{wallet: wallet, asset: assetKey}
	s, ok := o.sessions[k]
	if !ok {
		s = &session{step: domain.StepIdle, updatedAt: time.Now().UTC()}
		o.sessions[k] = s
	}
	return s
}

// checkWallet rejects write intents for wallets the gateway cannot sign for.
func (o *Orchestrator) checkWallet(wallet common.Address) error {
	if o.cfg.Signer != (common.Address{}) && wallet != o.cfg.Signer {
		return domain.ErrWalletNotOrchestrated
	}
	return nil
}

// State returns the externally visible snapshot of a session.
func (o *Orchestrator) State(wallet common.Address, assetKey string) domain.OrchestrationState {
	return o.session(wallet, assetKey).state()
}

// Reset unconditionally forces a session back to idle. It is the operator
// escape hatch for a stuck state (e.g. a transaction the signer silently
// dropped) and is idempotent.
func (o *Orchestrator) Reset(wallet common.Address, assetKey string) {
	s := o.session(wallet, assetKey)
	s.mu.Lock()
	s.setLocked(domain.StepIdle, "")
	s.marketCreated = false
	s.mu.Unlock()
	o.logger.Info("session reset",
		slog.String("wallet", wallet.Hex()),
		slog.String("asset", assetKey),
	)
}

// Deposit wraps amount of the underlying asset into SY. If the asset
// allowance does not cover the amount, the approval is surfaced as a
// distinct user action via *domain.ApprovalRequiredError; it is never
// auto-chained in the bare deposit flow.
func (o *Orchestrator) Deposit(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error {
	if err := o.checkWallet(wallet); err != nil {
		return err
	}
	asset, err := o.assets.Get(assetKey)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	sess := o.session(wallet, assetKey)
	if err := sess.begin(domain.StepWrapping, "checking allowance"); err != nil {
		return err
	}

	if err := o.depositLocked(ctx, sess, wallet, asset, amount); err != nil {
		o.fail(ctx, sess, wallet, asset, err)
		return err
	}
	return nil
}

// depositLocked runs the wrap flow on a session already claimed via begin.
func (o *Orchestrator) depositLocked(ctx context.Context, sess *session, wallet common.Address, asset domain.Asset, amount *big.Int) error {
	// Fresh allowance read right before submission narrows the stale-read
	// window to in-flight operations of the same wallet, which the step
	// guard excludes.
	allowance, err := o.gw.AllowanceOf(ctx, asset.Underlying, wallet, asset.SYToken)
	if err != nil {
		return fmt.Errorf("orchestrator: read asset allowance: %w", err)
	}
	if err := approval.AssetGate(asset).Check(amount, allowance); err != nil {
		return err
	}

	sess.set(domain.StepWrapping, "submitting wrap")
	tx, err := o.gw.Wrap(ctx, asset.SYToken, amount)
	if err != nil {
		return fmt.Errorf("orchestrator: wrap %s: %w", asset.Key, err)
	}
	entryID := o.record(ctx, wallet, asset, tx, amount)
	sess.set(domain.StepWaiting, "waiting for wrap confirmation")

	confirmed, err := o.gw.WaitConfirmed(ctx, tx)
	o.recordOutcome(ctx, entryID, err)
	if err != nil {
		return fmt.Errorf("orchestrator: wrap %s: %w", asset.Key, err)
	}

	o.complete(sess, "deposit confirmed")
	o.afterConfirm(ctx, wallet, asset, confirmed)
	o.emit(ctx, "deposit_confirmed", "Deposit confirmed",
		fmt.Sprintf("Wrapped %s %s into SY (tx %s)", amount, asset.Symbol, confirmed.Hash.Hex()))
	return nil
}

// Split converts amount of SY into PT and YT. A missing market is not an
// error: the market-creation remediation runs first, and the split proceeds
// once the market read confirms existence. Issuance is 1:1:1, so the minimum
// outputs equal the input; this is a zero slippage floor, not a price quote.
func (o *Orchestrator) Split(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error {
	if err := o.checkWallet(wallet); err != nil {
		return err
	}
	asset, err := o.assets.Get(assetKey)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	sess := o.session(wallet, assetKey)
	if err := sess.begin(domain.StepSplitting, "preparing split"); err != nil {
		return err
	}

	if err := o.splitLocked(ctx, sess, wallet, asset, amount); err != nil {
		o.fail(ctx, sess, wallet, asset, err)
		return err
	}
	return nil
}

func (o *Orchestrator) splitLocked(ctx context.Context, sess *session, wallet common.Address, asset domain.Asset, amount *big.Int) error {
	if err := o.ensureMarket(ctx, sess, wallet, asset); err != nil {
		return err
	}

	// The SY gate is checked fresh, after any remediation, and errors name
	// the SY/factory pair specifically so the caller cannot confuse it with
	// an asset-approval shortfall.
	allowance, err := o.gw.AllowanceOf(ctx, asset.SYToken, wallet, asset.Factory)
	if err != nil {
		return fmt.Errorf("orchestrator: read sy allowance: %w", err)
	}
	if err := approval.SYGate(asset).Check(amount, allowance); err != nil {
		return err
	}

	sess.set(domain.StepSplitting, "submitting split")
	tx, err := o.gw.SplitTokens(ctx, asset.Factory, asset.SYToken, amount, amount, amount)
	if err != nil {
		return fmt.Errorf("orchestrator: split %s: %w", asset.Key, err)
	}
	entryID := o.record(ctx, wallet, asset, tx, amount)
	sess.set(domain.StepWaiting, "waiting for split confirmation")

	confirmed, err := o.gw.WaitConfirmed(ctx, tx)
	o.recordOutcome(ctx, entryID, err)
	if err != nil {
		return fmt.Errorf("orchestrator: split %s: %w", asset.Key, err)
	}

	o.complete(sess, "split confirmed")
	o.afterConfirm(ctx, wallet, asset, confirmed)
	o.emit(ctx, "split_confirmed", "Split confirmed",
		fmt.Sprintf("Split %s SY-%s into PT and YT (tx %s)", amount, asset.Symbol, confirmed.Hash.Hex()))
	return nil
}

// ensureMarket runs the market-creation remediation when the asset's SY
// token has no market yet. At most one createMarket is submitted per
// session.
func (o *Orchestrator) ensureMarket(ctx context.Context, sess *session, wallet common.Address, asset domain.Asset) error {
	_, err := o.gw.MarketOf(ctx, asset.Factory, asset.SYToken)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrMarketNotFound) {
		return fmt.Errorf("orchestrator: read market: %w", err)
	}

	sess.mu.Lock()
	already := sess.marketCreated
	sess.marketCreated = true
	sess.mu.Unlock()
	if already {
		return fmt.Errorf("orchestrator: market for %s still unreadable after creation: %w", asset.Key, domain.ErrMarketNotFound)
	}

	sess.set(domain.StepSplitting, "creating market")
	tx, err := o.gw.CreateMarket(ctx, asset.Factory, asset.SYToken, asset.MaturityDuration,
		asset.PTName(), asset.PTSymbol(), asset.YTName(), asset.YTSymbol())
	if err != nil {
		return fmt.Errorf("orchestrator: create market for %s: %w", asset.Key, err)
	}
	entryID := o.record(ctx, wallet, asset, tx, nil)

	confirmed, err := o.gw.WaitConfirmed(ctx, tx)
	o.recordOutcome(ctx, entryID, err)
	if err != nil {
		return fmt.Errorf("orchestrator: create market for %s: %w", asset.Key, err)
	}

	// The factory read may lag the mined block; poll until the descriptor
	// shows up active.
	pollErr := o.cfg.MarketPoll.Do(ctx, func(ctx context.Context) error {
		m, err := o.gw.MarketOf(ctx, asset.Factory, asset.SYToken)
		if err != nil {
			return err
		}
		if !m.Active {
			return domain.ErrMarketNotFound
		}
		return nil
	})
	if pollErr != nil {
		return fmt.Errorf("orchestrator: market for %s not readable after creation: %w", asset.Key, pollErr)
	}

	o.publish(ctx, domain.Event{
		Topic:    domain.TopicMarketCreated,
		AssetKey: asset.Key,
		Wallet:   wallet,
		TxHash:   confirmed.Hash,
		At:       time.Now().UTC(),
	})
	o.emit(ctx, "market_created", "Market created",
		fmt.Sprintf("Tokenization market created for %s (tx %s)", asset.Symbol, confirmed.Hash.Hex()))
	return nil
}

// DepositAndSplit composes the two flows: it runs the deposit to completion,
// re-reads the post-wrap SY balance (the wrap may mint a different SY amount
// than the underlying input when the exchange rate is not 1:1), and splits
// the observed balance. The input amount is never passed through to the
// split.
func (o *Orchestrator) DepositAndSplit(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error {
	asset, err := o.assets.Get(assetKey)
	if err != nil {
		return err
	}

	if err := o.Deposit(ctx, wallet, assetKey, amount); err != nil {
		return err
	}

	// The freshly minted SY may not be visible immediately through lagging
	// reads; poll briefly before giving up.
	var observed *big.Int
	pollErr := o.cfg.BalancePoll.Do(ctx, func(ctx context.Context) error {
		bal, err := o.gw.BalanceOf(ctx, asset.SYToken, wallet)
		if err != nil {
			return err
		}
		if bal.Sign() == 0 {
			return domain.ErrNoBalanceToSplit
		}
		observed = bal
		return nil
	})
	if pollErr != nil {
		// A zero balance is the domain outcome; a failing RPC read is not
		// and must surface as the read error it is.
		err := error(domain.ErrNoBalanceToSplit)
		if !errors.Is(pollErr, domain.ErrNoBalanceToSplit) {
			err = fmt.Errorf("orchestrator: read post-wrap balance: %w", pollErr)
		}
		o.fail(ctx, o.session(wallet, assetKey), wallet, asset, err)
		return err
	}

	return o.Split(ctx, wallet, assetKey, observed)
}

// Approve submits the explicit approval the user chose after an
// ApprovalRequired error, for the named relationship.
func (o *Orchestrator) Approve(ctx context.Context, wallet common.Address, assetKey string, kind domain.ApprovalKind, amount *big.Int) error {
	if err := o.checkWallet(wallet); err != nil {
		return err
	}
	asset, err := o.assets.Get(assetKey)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	var gate approval.Gate
	switch kind {
	case domain.ApprovalAsset:
		gate = approval.AssetGate(asset)
	case domain.ApprovalSY:
		gate = approval.SYGate(asset)
	default:
		return fmt.Errorf("orchestrator: unknown approval kind %q", kind)
	}

	sess := o.session(wallet, assetKey)
	if err := sess.begin(domain.StepApproving, "submitting approval"); err != nil {
		return err
	}

	if err := o.approveLocked(ctx, sess, wallet, asset, gate, amount); err != nil {
		o.fail(ctx, sess, wallet, asset, err)
		return err
	}
	return nil
}

func (o *Orchestrator) approveLocked(ctx context.Context, sess *session, wallet common.Address, asset domain.Asset, gate approval.Gate, amount *big.Int) error {
	tx, err := o.gw.Approve(ctx, gate.Token, gate.Spender, amount)
	if err != nil {
		return fmt.Errorf("orchestrator: approve %s/%s: %w", asset.Key, gate.Kind, err)
	}
	entryID := o.record(ctx, wallet, asset, tx, amount)
	sess.set(domain.StepApproving, "waiting for approval confirmation")

	confirmed, err := o.gw.WaitConfirmed(ctx, tx)
	o.recordOutcome(ctx, entryID, err)
	if err != nil {
		if errors.Is(err, domain.ErrConfirmationTimeout) {
			err = fmt.Errorf("%w: %v", domain.ErrApprovalTimeout, err)
		}
		return fmt.Errorf("orchestrator: approve %s/%s: %w", asset.Key, gate.Kind, err)
	}

	o.complete(sess, "approval confirmed")
	o.emit(ctx, "approval_confirmed", "Approval confirmed",
		fmt.Sprintf("%s approved to spend %s (tx %s)", gate.Spender.Hex(), gate.Token.Hex(), confirmed.Hash.Hex()))
	return nil
}

// ---------------------------------------------------------------------------
// Shared transition helpers
// ---------------------------------------------------------------------------

// complete marks the session complete and schedules the cooldown expiry back
// to idle. New intents are accepted from complete directly, so the expiry is
// cosmetic for the UI rather than load-bearing.
func (o *Orchestrator) complete(sess *session, msg string) {
	sess.mu.Lock()
	sess.setLocked(domain.StepComplete, msg)
	sess.marketCreated = false
	sess.mu.Unlock()

	cooldown := o.cfg.CompleteCooldown
	if cooldown <= 0 {
		cooldown = 3 * time.Second
	}
	time.AfterFunc(cooldown, func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.step == domain.StepComplete {
			sess.setLocked(domain.StepIdle, "")
		}
	})
}

// fail implements the propagation policy: every failure resets the session
// to idle and maps to a notification. ErrOperationInProgress never reaches
// here because begin returns before side effects.
func (o *Orchestrator) fail(ctx context.Context, sess *session, wallet common.Address, asset domain.Asset, opErr error) {
	sess.mu.Lock()
	sess.setLocked(domain.StepIdle, opErr.Error())
	sess.marketCreated = false
	sess.mu.Unlock()

	o.logger.Warn("operation failed",
		slog.String("wallet", wallet.Hex()),
		slog.String("asset", asset.Key),
		slog.String("error", opErr.Error()),
	)

	// ApprovalRequired is a user decision point, not a failure toast.
	if errors.Is(opErr, domain.ErrApprovalRequired) {
		return
	}
	o.emit(ctx, "tx_failed", "Transaction failed",
		fmt.Sprintf("%s operation on %s failed: %v", asset.Symbol, asset.Key, opErr))
}

// afterConfirm fires the non-blocking post-confirmation side effects.
func (o *Orchestrator) afterConfirm(ctx context.Context, wallet common.Address, asset domain.Asset, tx domain.PendingTransaction) {
	if o.reconciler != nil {
		o.reconciler.Trigger(wallet, asset)
	}
	o.publish(ctx, domain.Event{
		Topic:    domain.TopicTxRecorded,
		AssetKey: asset.Key,
		Wallet:   wallet,
		TxHash:   tx.Hash,
		At:       time.Now().UTC(),
	})
}

func (o *Orchestrator) emit(ctx context.Context, event, title, message string) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Notify(ctx, event, title, message); err != nil {
		o.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) publish(ctx context.Context, evt domain.Event) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, evt); err != nil {
		o.logger.Warn("event publish failed",
			slog.String("topic", string(evt.Topic)),
			slog.String("error", err.Error()),
		)
	}
}

// record appends a ledger row for a submitted transaction. Recording is
// best-effort; the ledger is display-only and never consulted for
// correctness.
func (o *Orchestrator) record(ctx context.Context, wallet common.Address, asset domain.Asset, tx domain.PendingTransaction, amount *big.Int) string {
	if o.ledger == nil {
		return ""
	}
	id := uuid.New().String()
	entry := domain.LedgerEntry{
		ID:        id,
		Wallet:    wallet,
		AssetKey:  asset.Key,
		Kind:      tx.Kind,
		TxHash:    tx.Hash,
		Amount:    amount,
		Status:    domain.TxStatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		o.logger.Warn("ledger append failed",
			slog.String("tx", tx.Hash.Hex()),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return id
}

func (o *Orchestrator) recordOutcome(ctx context.Context, entryID string, waitErr error) {
	if o.ledger == nil || entryID == "" {
		return
	}
	status := domain.TxStatusConfirmed
	var confirmedAt *time.Time
	if waitErr == nil {
		now := time.Now().UTC()
		confirmedAt = &now
	} else if errors.Is(waitErr, domain.ErrTransactionReverted) {
		status = domain.TxStatusReverted
	} else {
		// Timed out or cancelled; leave the row as submitted for a later
		// reconciliation pass to settle.
		return
	}
	if err := o.ledger.UpdateStatus(ctx, entryID, status, confirmedAt); err != nil {
		o.logger.Warn("ledger status update failed",
			slog.String("entry", entryID),
			slog.String("error", err.Error()),
		)
	}
}
