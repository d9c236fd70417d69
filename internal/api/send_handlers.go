package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
	"github.com/ignite/dispatch-engine/internal/service/sending"
)

type sendRequest struct {
	DomainID    string              `json:"domainId"`
	TemplateID  string              `json:"templateId"`
	Assignments []assignmentRequest `json:"assignments"`
}

// SendImmediate runs a batch now and returns its results.
//
//	POST /api/send/immediate
func (h *Handlers) SendImmediate(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.sending.Immediate(r.Context(), sending.ImmediateInput{
		DomainID:    req.DomainID,
		TemplateID:  req.TemplateID,
		Assignments: toAssignments(req.Assignments),
	})
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// TestAccount sends one test message from an account.
//
//	POST /api/accounts/{id}/test
func (h *Handlers) TestAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.sending.TestAccount(r.Context(), chi.URLParam(r, "id"))
	var tse *sending.TestSendError
	if errors.As(err, &tse) {
		httputil.JSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": tse.Reason})
		return
	}
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// FetchTemplate loads a provider template and proposes its merge mapping.
//
//	POST /api/templates/fetch
func (h *Handlers) FetchTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DomainID    string `json:"domainId"`
		TemplateKey string `json:"templateKey"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	tpl, err := h.sending.FetchTemplate(r.Context(), req.DomainID, req.TemplateKey)
	if err != nil {
		httputil.ServiceError(w, err)
		return
	}
	httputil.OK(w, tpl)
}
