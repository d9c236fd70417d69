package identity

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Repository persists the identity toggles. Implementations must be safe
// for concurrent use.
type Repository interface {
	// GetSettings returns the stored settings, or zero settings if none
	// were saved yet.
	GetSettings(ctx context.Context) (*domain.Settings, error)

	// SetAutoProcess stores the queue auto-process flag.
	SetAutoProcess(ctx context.Context, enabled bool) error

	// ActivateDomain makes id the only active Domain and records it as the
	// selection, atomically. Returns domain.ErrNotFound for unknown ids.
	ActivateDomain(ctx context.Context, id string) (*domain.Domain, error)

	// ToggleAccount flips an Account's active flag and returns the result.
	ToggleAccount(ctx context.Context, id string) (*domain.Account, error)
}
