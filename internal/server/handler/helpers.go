package handler

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// writeJSON marshals v and writes it with the given status code. A marshal
// failure degrades to a plain 500 body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the orchestration error taxonomy onto HTTP statuses.
// ApprovalRequired is not a failure: it is a 409 carrying the exact token and
// spender the client must approve before retrying the intent.
func writeDomainError(w http.ResponseWriter, err error) {
	var approvalErr *domain.ApprovalRequiredError
	if errors.As(err, &approvalErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "approval required",
			"kind":    approvalErr.Kind,
			"token":   approvalErr.Token,
			"spender": approvalErr.Spender,
		})
		return
	}

	var revertErr *domain.RevertError
	if errors.As(err, &revertErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "transaction reverted",
			"tx_hash": revertErr.TxHash,
			"reason":  revertErr.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownAsset), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOperationInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrWalletNotOrchestrated):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNoBalanceToSplit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrApprovalTimeout),
		errors.Is(err, domain.ErrConfirmationTimeout),
		errors.Is(err, domain.ErrReconciliationTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrSubmissionRejected):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseWallet validates the wallet query parameter.
func parseWallet(r *http.Request) (common.Address, bool) {
	raw := r.URL.Query().Get("wallet")
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// parseAmount decodes a base-unit decimal string into a big.Int.
func parseAmount(raw string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() <= 0 {
		return nil, false
	}
	return n, true
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}
