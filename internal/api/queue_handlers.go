package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
	"github.com/ignite/dispatch-engine/internal/service/queue"
)

type queueRequest struct {
	sendRequest
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// AddToQueue schedules a batch.
//
//	POST /api/queue/add
func (h *Handlers) AddToQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	item, err := h.queue.Add(r.Context(), queue.AddInput{
		DomainID:    req.DomainID,
		TemplateID:  req.TemplateID,
		Assignments: toAssignments(req.Assignments),
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.Created(w, item)
}

// ListQueue lists queue items, all domains unless domainId is given.
//
//	GET /api/queue?domainId=
func (h *Handlers) ListQueue(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.List(r.Context(), r.URL.Query().Get("domainId"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, items)
}

// GetQueueItem returns one queue item.
//
//	GET /api/queue/{id}
func (h *Handlers) GetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, item)
}

// CancelQueueItem cancels a pending item.
//
//	DELETE /api/queue/{id}
func (h *Handlers) CancelQueueItem(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.Success(w)
}

// ClearCompletedQueue removes completed and cancelled items, optionally for
// one domain only.
//
//	POST /api/queue/clear-completed?domainId=
func (h *Handlers) ClearCompletedQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.ClearFinished(r.Context(), r.URL.Query().Get("domainId"))
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "removed": n})
}
