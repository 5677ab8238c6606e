package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// PositionReader is the slice of the position service this handler needs.
type PositionReader interface {
	Position(ctx context.Context, wallet common.Address, assetKey string) (domain.Position, error)
	Positions(ctx context.Context, wallet common.Address) ([]domain.Position, error)
}

// PositionHandler serves position snapshots.
type PositionHandler struct {
	positions PositionReader
	logger    *slog.Logger
}

func NewPositionHandler(positions PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

// ListPositions returns the wallet's snapshot across every registered asset.
// GET /api/positions?wallet=0x...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet, ok := parseWallet(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "valid wallet query parameter required")
		return
	}

	positions, err := h.positions.Positions(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("wallet", wallet.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, map[string][]domain.Position{"positions": positions})
}

// GetPosition returns the wallet's snapshot for one asset.
// GET /api/positions/{asset}?wallet=0x...
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	wallet, ok := parseWallet(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "valid wallet query parameter required")
		return
	}

	pos, err := h.positions.Position(r.Context(), wallet, r.PathValue("asset"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
