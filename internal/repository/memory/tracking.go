package memory

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/tracking"
)

// TrackingRepo implements tracking.Repository in memory.
type TrackingRepo struct{ s *Store }

var _ tracking.Repository = (*TrackingRepo)(nil)

func (r *TrackingRepo) SaveEvent(_ context.Context, ev *domain.TrackingEvent) error {
	r.s.trackingMu.Lock()
	defer r.s.trackingMu.Unlock()
	r.s.tracking = append(r.s.tracking, *ev)
	return nil
}

func (r *TrackingRepo) ListEvents(_ context.Context, messageID string) ([]domain.TrackingEvent, error) {
	r.s.trackingMu.RLock()
	defer r.s.trackingMu.RUnlock()
	out := make([]domain.TrackingEvent, 0)
	for _, ev := range r.s.tracking {
		if messageID == "" || ev.MessageID == messageID {
			out = append(out, ev)
		}
	}
	return out, nil
}
