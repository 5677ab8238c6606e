package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// Orchestrating is the slice of the orchestrator this handler needs.
type Orchestrating interface {
	Deposit(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error
	Split(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error
	DepositAndSplit(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) error
	Approve(ctx context.Context, wallet common.Address, assetKey string, kind domain.ApprovalKind, amount *big.Int) error
	Reset(wallet common.Address, assetKey string)
	State(wallet common.Address, assetKey string) domain.OrchestrationState
}

// TxService covers the direct position transactions that bypass the step
// machine.
type TxService interface {
	ClaimYield(ctx context.Context, wallet common.Address, assetKey string, viaFactory bool) (domain.PendingTransaction, error)
	Unwrap(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error)
	RedeemPT(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error)
	FaucetMint(ctx context.Context, wallet common.Address, assetKey string, amount *big.Int) (domain.PendingTransaction, error)
}

// IntentHandler accepts user intents and forwards them to the orchestrator
// or the position service.
type IntentHandler struct {
	orc    Orchestrating
	txs    TxService
	logger *slog.Logger
}

func NewIntentHandler(orc Orchestrating, txs TxService, logger *slog.Logger) *IntentHandler {
	return &IntentHandler{orc: orc, txs: txs, logger: logger}
}

// intentRequest is the shared body for all intent endpoints. Amount is a
// base-unit decimal string so 256-bit values survive JSON.
type intentRequest struct {
	Wallet     string `json:"wallet"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	Kind       string `json:"kind"`
	ViaFactory bool   `json:"via_factory"`
}

func (h *IntentHandler) decode(w http.ResponseWriter, r *http.Request, needAmount bool) (common.Address, string, *big.Int, *intentRequest, bool) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return common.Address{}, "", nil, nil, false
	}
	if !common.IsHexAddress(req.Wallet) {
		writeError(w, http.StatusBadRequest, "valid wallet required")
		return common.Address{}, "", nil, nil, false
	}
	if req.Asset == "" {
		writeError(w, http.StatusBadRequest, "asset required")
		return common.Address{}, "", nil, nil, false
	}

	var amount *big.Int
	if needAmount {
		var ok bool
		if amount, ok = parseAmount(req.Amount); !ok {
			writeError(w, http.StatusBadRequest, "amount must be a positive base-unit integer")
			return common.Address{}, "", nil, nil, false
		}
	}
	return common.HexToAddress(req.Wallet), req.Asset, amount, &req, true
}

func (h *IntentHandler) run(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, wallet common.Address, asset string, amount *big.Int) error) {
	wallet, asset, amount, _, ok := h.decode(w, r, true)
	if !ok {
		return
	}

	if err := fn(r.Context(), wallet, asset, amount); err != nil {
		h.logger.WarnContext(r.Context(), "handler: intent failed",
			slog.String("op", op),
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.orc.State(wallet, asset))
}

// Deposit wraps the underlying asset into SY.
// POST /api/intents/deposit
func (h *IntentHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "deposit", h.orc.Deposit)
}

// Split splits SY into PT and YT, creating the market first if needed.
// POST /api/intents/split
func (h *IntentHandler) Split(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "split", h.orc.Split)
}

// DepositAndSplit chains both, splitting the freshly observed SY balance.
// POST /api/intents/deposit-split
func (h *IntentHandler) DepositAndSplit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "deposit_split", h.orc.DepositAndSplit)
}

// Approve grants one of the two allowance relationships.
// POST /api/intents/approve
func (h *IntentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	wallet, asset, amount, req, ok := h.decode(w, r, true)
	if !ok {
		return
	}

	kind := domain.ApprovalKind(req.Kind)
	if kind != domain.ApprovalAsset && kind != domain.ApprovalSY {
		writeError(w, http.StatusBadRequest, `kind must be "asset" or "sy"`)
		return
	}

	if err := h.orc.Approve(r.Context(), wallet, asset, kind, amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orc.State(wallet, asset))
}

// Reset forces the session back to idle after a wedged flow.
// POST /api/intents/reset
func (h *IntentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	wallet, asset, _, _, ok := h.decode(w, r, false)
	if !ok {
		return
	}
	h.orc.Reset(wallet, asset)
	writeJSON(w, http.StatusOK, h.orc.State(wallet, asset))
}

// State reports the current step for a wallet and asset.
// GET /api/intents/state?wallet=0x...&asset=stcore
func (h *IntentHandler) State(w http.ResponseWriter, r *http.Request) {
	wallet, ok := parseWallet(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "valid wallet query parameter required")
		return
	}
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		writeError(w, http.StatusBadRequest, "asset query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, h.orc.State(wallet, asset))
}

// ClaimYield claims accrued yield, optionally routed through the factory.
// POST /api/tx/claim
func (h *IntentHandler) ClaimYield(w http.ResponseWriter, r *http.Request) {
	wallet, asset, _, req, ok := h.decode(w, r, false)
	if !ok {
		return
	}
	tx, err := h.txs.ClaimYield(r.Context(), wallet, asset, req.ViaFactory)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Unwrap converts SY back to the underlying asset.
// POST /api/tx/unwrap
func (h *IntentHandler) Unwrap(w http.ResponseWriter, r *http.Request) {
	h.runTx(w, r, h.txs.Unwrap)
}

// RedeemPT redeems matured principal tokens.
// POST /api/tx/redeem
func (h *IntentHandler) RedeemPT(w http.ResponseWriter, r *http.Request) {
	h.runTx(w, r, h.txs.RedeemPT)
}

// FaucetMint mints test tokens on the underlying contract.
// POST /api/tx/faucet
func (h *IntentHandler) FaucetMint(w http.ResponseWriter, r *http.Request) {
	h.runTx(w, r, h.txs.FaucetMint)
}

func (h *IntentHandler) runTx(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, wallet common.Address, asset string, amount *big.Int) (domain.PendingTransaction, error)) {
	wallet, asset, amount, _, ok := h.decode(w, r, true)
	if !ok {
		return
	}
	tx, err := fn(r.Context(), wallet, asset, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
