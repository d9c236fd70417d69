package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
)

// GetSettings returns the global settings.
//
//	GET /api/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.identity.Settings(r.Context())
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// UpdateSettings stores the auto-process flag and the active domain.
//
//	POST /api/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if !httputil.Decode(w, r, &req) {
		return
	}
	st, err := h.identity.UpdateSettings(r.Context(), req)
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

// ActivateDomain makes a domain the single active one.
//
//	POST /api/domains/{id}/activate
func (h *Handlers) ActivateDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.identity.ActivateDomain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, d)
}

// ToggleAccount flips an account's active flag.
//
//	POST /api/accounts/{id}/toggle
func (h *Handlers) ToggleAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.identity.ToggleAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, a)
}
