package stats

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Repository persists batch outcomes. Implementations must be safe for
// concurrent use.
type Repository interface {
	// ApplyResults increments Domain and Account stats by the record's
	// results, sets each referenced contact's send status, and appends rec,
	// all atomically. Results that reference a missing account or contact
	// still count toward the Domain.
	ApplyResults(ctx context.Context, rec *domain.HistoryRecord) error

	// ListHistory returns records newest first. An empty domainID lists all.
	ListHistory(ctx context.Context, domainID string) ([]domain.HistoryRecord, error)

	// DeleteHistory removes the given records and, when resetContacts is
	// set, moves every contact they reference back to unsent. Returns the
	// number of records removed.
	DeleteHistory(ctx context.Context, ids []string, resetContacts bool) (int, error)
}
