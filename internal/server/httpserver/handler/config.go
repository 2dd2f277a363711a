package handler

import (
	"encoding/json"
	"net/http"

	"github.com/BoxCatTeam/CatPanelBackend/internal/server/config"
	"github.com/BoxCatTeam/CatPanelBackend/internal/telemetry/logger"
)

const maxConfigBody = 1 << 20

// handleGetConfig handles GET /api/v1/config.
func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, config.Sanitize(h.config.Get()))
}

// handleMergeConfig handles POST /api/v1/config. The merged result is
// validated before it replaces the live configuration.
func (h *Handler) handleMergeConfig(w http.ResponseWriter, r *http.Request) {
	var req MergeConfigRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CP-ARG-4000", "invalid request body", nil)
		return
	}
	if len(req.Config) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "CP-ARG-4000", "config is required", nil)
		return
	}

	merged, err := h.config.Merge(req.Config, req.Persist)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CP-CONF-4000", err.Error(), nil)
		return
	}
	if req.Config["log"] != nil {
		logger.SetLevel(merged.Log.Level)
	}

	logger.L(r.Context()).Info("configuration merged", "persist", req.Persist)
	h.writeJSON(w, r, http.StatusOK, config.Sanitize(merged))
}
