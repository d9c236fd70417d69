package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/identity"
	"github.com/ignite/dispatch-engine/internal/service/queue"
	"github.com/ignite/dispatch-engine/internal/service/sending"
	"github.com/ignite/dispatch-engine/internal/service/stats"
	"github.com/ignite/dispatch-engine/internal/tracking"
)

// Handlers holds the services behind the HTTP endpoints.
type Handlers struct {
	sending  *sending.Service
	queue    *queue.Service
	stats    *stats.Service
	identity *identity.Service
	tracking *tracking.Service
	health   *HealthChecker
}

// Services groups the dependencies of NewHandlers.
type Services struct {
	Sending  *sending.Service
	Queue    *queue.Service
	Stats    *stats.Service
	Identity *identity.Service
	Tracking *tracking.Service
	Health   *HealthChecker
}

// NewHandlers creates the handler set. Health may be nil.
func NewHandlers(s Services) *Handlers {
	if s.Health == nil {
		s.Health = NewHealthChecker(nil, nil)
	}
	return &Handlers{
		sending:  s.Sending,
		queue:    s.Queue,
		stats:    s.Stats,
		identity: s.Identity,
		tracking: s.Tracking,
		health:   s.Health,
	}
}

// assignmentRequest accepts contacts either as ids or as contact objects.
type assignmentRequest struct {
	AccountID  string   `json:"accountId"`
	ContactIDs []string `json:"contactIds"`
	Contacts   []struct {
		ID string `json:"id"`
	} `json:"contacts"`
}

func toAssignments(in []assignmentRequest) []domain.Assignment {
	out := make([]domain.Assignment, 0, len(in))
	for _, a := range in {
		ids := append([]string(nil), a.ContactIDs...)
		for _, c := range a.Contacts {
			ids = append(ids, c.ID)
		}
		out = append(out, domain.Assignment{AccountID: a.AccountID, ContactIDs: ids})
	}
	return out
}

// boolParam reads an optional boolean query parameter.
func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.Invalid(name, "must be a boolean")
	}
	return b, nil
}
