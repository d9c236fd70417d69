package memory

import (
	"context"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/identity"
)

// IdentityRepo implements identity.Repository in memory.
type IdentityRepo struct{ s *Store }

var _ identity.Repository = (*IdentityRepo)(nil)

func (r *IdentityRepo) GetSettings(_ context.Context) (*domain.Settings, error) {
	r.s.settingsMu.RLock()
	defer r.s.settingsMu.RUnlock()
	st := r.s.settings
	return &st, nil
}

func (r *IdentityRepo) SetAutoProcess(_ context.Context, enabled bool) error {
	r.s.settingsMu.Lock()
	defer r.s.settingsMu.Unlock()
	r.s.settings.AutoProcessQueue = enabled
	return nil
}

func (r *IdentityRepo) ActivateDomain(_ context.Context, id string) (*domain.Domain, error) {
	s := r.s
	s.domains.mu.Lock()
	defer s.domains.mu.Unlock()
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	target, ok := s.domains.items[id]
	if !ok {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	for _, d := range s.domains.items {
		d.Active = false
	}
	target.Active = true
	s.settings.ActiveDomainID = id

	cp := *target
	return &cp, nil
}

func (r *IdentityRepo) ToggleAccount(_ context.Context, id string) (*domain.Account, error) {
	r.s.accounts.mu.Lock()
	defer r.s.accounts.mu.Unlock()
	a, ok := r.s.accounts.items[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	a.Active = !a.Active
	cp := *a
	return &cp, nil
}
