package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
)

// ListHistory lists history records newest first, optionally for one domain.
//
//	GET /api/history?domainId=
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.stats.History(r.Context(), r.URL.Query().Get("domainId"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, records)
}

// DeleteHistory removes one record, resetting its contacts unless
// keepContacts is set.
//
//	DELETE /api/history/{id}?keepContacts=
func (h *Handlers) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	keep, err := boolParam(r, "keepContacts")
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	if err := h.stats.Delete(r.Context(), chi.URLParam(r, "id"), keep); err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.Success(w)
}

// BulkDeleteHistory removes several records.
//
//	POST /api/history/bulk-delete?keepContacts=
func (h *Handlers) BulkDeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs          []string `json:"ids"`
		KeepContacts *bool    `json:"keepContacts"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	keep, err := boolParam(r, "keepContacts")
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	if req.KeepContacts != nil {
		keep = *req.KeepContacts
	}

	n, err := h.stats.BulkDelete(r.Context(), req.IDs, keep)
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "deleted": n})
}
