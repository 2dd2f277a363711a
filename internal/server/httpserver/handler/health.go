package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /readyz. The server is ready once the module
// cache answers.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if _, err := h.cache.Len(); err != nil {
			h.writeError(w, r, http.StatusServiceUnavailable, "CP-STOR-5030", "module cache unavailable", nil)
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
