package handler

import (
	"net/http"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/registry"
)

// AssetHandler exposes the asset registry.
type AssetHandler struct {
	assets *registry.AssetRegistry
}

func NewAssetHandler(assets *registry.AssetRegistry) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// ListAssets returns every registered asset with its contract addresses.
// GET /api/assets
func (h *AssetHandler) ListAssets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Asset{"assets": h.assets.List()})
}

// GetAsset returns one asset by key.
// GET /api/assets/{key}
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.assets.Get(r.PathValue("key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
