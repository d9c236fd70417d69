package dispatch

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Directory is the read side of the entity store. Implementations return
// domain.ErrNotFound (possibly wrapped) for unknown ids.
type Directory interface {
	GetDomain(ctx context.Context, id string) (*domain.Domain, error)
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// GetContacts returns the contacts that exist among ids. Unknown ids
	// are omitted rather than reported.
	GetContacts(ctx context.Context, ids []string) ([]domain.Contact, error)
}
