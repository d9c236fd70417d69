package memory

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/stats"
)

// HistoryRepo implements stats.Repository in memory.
type HistoryRepo struct{ s *Store }

var _ stats.Repository = (*HistoryRepo)(nil)

func (r *HistoryRepo) ApplyResults(_ context.Context, rec *domain.HistoryRecord) error {
	s := r.s
	s.domains.mu.Lock()
	defer s.domains.mu.Unlock()
	s.accounts.mu.Lock()
	defer s.accounts.mu.Unlock()
	s.contacts.mu.Lock()
	defer s.contacts.mu.Unlock()
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	d := s.domains.items[rec.DomainID]
	for _, res := range rec.Results {
		if d != nil {
			d.Stats.Add(res.Status)
		}
		if a, ok := s.accounts.items[res.AccountID]; ok {
			a.Stats.Add(res.Status)
		}
		if c, ok := s.contacts.items[res.ContactID]; ok {
			c.SendStatus = res.Status
		}
	}
	s.history = append(s.history, cloneHistory(*rec))
	return nil
}

func (r *HistoryRepo) ListHistory(_ context.Context, domainID string) ([]domain.HistoryRecord, error) {
	r.s.historyMu.RLock()
	defer r.s.historyMu.RUnlock()
	out := make([]domain.HistoryRecord, 0, len(r.s.history))
	for i := len(r.s.history) - 1; i >= 0; i-- {
		h := r.s.history[i]
		if domainID == "" || h.DomainID == domainID {
			out = append(out, cloneHistory(h))
		}
	}
	return out, nil
}

func (r *HistoryRepo) DeleteHistory(_ context.Context, ids []string, resetContacts bool) (int, error) {
	s := r.s
	s.contacts.mu.Lock()
	defer s.contacts.mu.Unlock()
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := s.history[:0]
	removed := 0
	for _, h := range s.history {
		if !drop[h.ID] {
			kept = append(kept, h)
			continue
		}
		removed++
		if resetContacts {
			for _, cid := range h.ContactIDs() {
				if c, ok := s.contacts.items[cid]; ok {
					c.SendStatus = domain.StatusUnsent
				}
			}
		}
	}
	s.history = kept
	return removed, nil
}
