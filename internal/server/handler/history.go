package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// HistoryReader lists ledger entries for display.
type HistoryReader interface {
	History(ctx context.Context, wallet common.Address, opts domain.ListOpts) ([]domain.LedgerEntry, error)
}

// HistoryHandler serves the per-wallet transaction ledger.
type HistoryHandler struct {
	history HistoryReader
	logger  *slog.Logger
}

func NewHistoryHandler(history HistoryReader, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// ListHistory returns recent ledger entries, newest first.
// GET /api/history?wallet=0x...&limit=50&offset=0
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	wallet, ok := parseWallet(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "valid wallet query parameter required")
		return
	}

	entries, err := h.history.History(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list history failed",
			slog.String("wallet", wallet.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}

	writeJSON(w, http.StatusOK, map[string][]domain.LedgerEntry{"history": entries})
}
