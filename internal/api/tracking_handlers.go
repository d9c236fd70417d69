package api

import (
	"io"
	"net/http"

	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
)

const maxWebhookBody = 1 << 20

// ProviderWebhook stores a delivery event posted by the mail provider.
//
//	POST /api/webhook/provider
func (h *Handlers) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "read body: "+err.Error())
		return
	}
	ev, err := h.tracking.Ingest(r.Context(), body)
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "id": ev.ID})
}

// ListTracking lists the events recorded for one message.
//
//	GET /api/tracking?messageId=
func (h *Handlers) ListTracking(w http.ResponseWriter, r *http.Request) {
	events, err := h.tracking.Events(r.Context(), r.URL.Query().Get("messageId"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, events)
}
