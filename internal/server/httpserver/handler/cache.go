package handler

import (
	"net/http"
	"sort"
	"strings"
)

// handleCacheStatus handles GET /api/v1/cache.
func (h *Handler) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Len()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, CacheStatusResponse{
		Backend: string(h.cache.Backend()),
		Path:    h.cache.Path(),
		Entries: n,
	})
}

// handleCacheKeys handles GET /api/v1/cache/keys?prefix=...
func (h *Handler) handleCacheKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.cache.Keys(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	prefix := r.URL.Query().Get("prefix")
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)

	h.writeJSON(w, r, http.StatusOK, CacheKeysResponse{Keys: out, Total: len(out)})
}

// handleCacheRemove handles DELETE /api/v1/cache/keys?key=...
// Removing an absent key succeeds.
func (h *Handler) handleCacheRemove(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		h.writeError(w, r, http.StatusBadRequest, "CP-ARG-4000", "key is required", nil)
		return
	}
	if err := h.cache.Remove(r.Context(), key); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"removed": key})
}
