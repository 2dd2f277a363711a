package handler

import (
	"net/http"
	"strconv"
)

// handleLoadModule handles GET /api/v1/modules?specifier=...&referrer=...
// The code is included unless source=false.
func (h *Handler) handleLoadModule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	specifier := q.Get("specifier")
	if specifier == "" {
		h.writeError(w, r, http.StatusBadRequest, "CP-ARG-4000", "specifier is required", nil)
		return
	}
	withSource := true
	if v := q.Get("source"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "CP-ARG-4000", "source must be a boolean", nil)
			return
		}
		withSource = b
	}

	u, err := h.loader.Resolve(specifier, q.Get("referrer"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	src, err := h.loader.Load(r.Context(), u)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ModuleResponse{
		Specified: src.Specified,
		Found:     src.Found,
		Kind:      src.Kind.String(),
		Type:      src.Type.String(),
		Size:      len(src.Code),
	}
	if withSource {
		resp.Code = string(src.Code)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
