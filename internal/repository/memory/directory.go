package memory

import (
	"context"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// DirectoryRepo reads Domains, Accounts, Templates and Contacts.
type DirectoryRepo struct{ s *Store }

func (r *DirectoryRepo) GetDomain(_ context.Context, id string) (*domain.Domain, error) {
	r.s.domains.mu.RLock()
	defer r.s.domains.mu.RUnlock()
	d, ok := r.s.domains.items[id]
	if !ok {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (r *DirectoryRepo) GetTemplate(_ context.Context, id string) (*domain.Template, error) {
	r.s.templates.mu.RLock()
	defer r.s.templates.mu.RUnlock()
	t, ok := r.s.templates.items[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	cp := cloneTemplate(*t)
	return &cp, nil
}

func (r *DirectoryRepo) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	r.s.accounts.mu.RLock()
	defer r.s.accounts.mu.RUnlock()
	a, ok := r.s.accounts.items[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r *DirectoryRepo) GetContact(_ context.Context, id string) (*domain.Contact, error) {
	r.s.contacts.mu.RLock()
	defer r.s.contacts.mu.RUnlock()
	c, ok := r.s.contacts.items[id]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", id, domain.ErrNotFound)
	}
	cp := cloneContact(*c)
	return &cp, nil
}

func (r *DirectoryRepo) GetContacts(_ context.Context, ids []string) ([]domain.Contact, error) {
	r.s.contacts.mu.RLock()
	defer r.s.contacts.mu.RUnlock()
	out := make([]domain.Contact, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.s.contacts.items[id]; ok {
			out = append(out, cloneContact(*c))
		}
	}
	return out, nil
}

// FirstTemplate returns the earliest stored template of a domain.
func (r *DirectoryRepo) FirstTemplate(_ context.Context, domainID string) (*domain.Template, error) {
	r.s.templates.mu.RLock()
	defer r.s.templates.mu.RUnlock()
	for _, id := range r.s.templates.order {
		if t := r.s.templates.items[id]; t.DomainID == domainID {
			cp := cloneTemplate(*t)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("template for domain %s: %w", domainID, domain.ErrNotFound)
}

// FirstContact returns the earliest stored contact of a domain.
func (r *DirectoryRepo) FirstContact(_ context.Context, domainID string) (*domain.Contact, error) {
	r.s.contacts.mu.RLock()
	defer r.s.contacts.mu.RUnlock()
	for _, id := range r.s.contacts.order {
		if c := r.s.contacts.items[id]; c.DomainID == domainID {
			cp := cloneContact(*c)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("contact for domain %s: %w", domainID, domain.ErrNotFound)
}
