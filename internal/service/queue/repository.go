package queue

import (
	"context"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Repository defines the data access contract for queue items.
// Implementations must be safe for concurrent use, and every state change
// must be a single conditional write.
type Repository interface {
	// Create inserts a new pending item.
	Create(ctx context.Context, item *domain.QueueItem) error

	// Get returns one item. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.QueueItem, error)

	// List returns items in queue order (scheduledAt, then createdAt).
	// An empty domainID lists all.
	List(ctx context.Context, domainID string) ([]domain.QueueItem, error)

	// Cancel moves a pending item to cancelled. Returns ErrNotFound or
	// ErrNotCancellable.
	Cancel(ctx context.Context, id string, at time.Time) error

	// DeleteFinished removes completed and cancelled items and returns how
	// many were removed. An empty domainID clears all domains.
	DeleteFinished(ctx context.Context, domainID string) (int, error)

	// ClaimNext moves the earliest due pending item to processing, stamped
	// with owner, startedAt=now and a lease until now+lease. Returns nil
	// when nothing is due.
	ClaimNext(ctx context.Context, owner string, now time.Time, lease time.Duration) (*domain.QueueItem, error)

	// ExtendLease pushes out the lease of an item owner still holds.
	// Returns ErrLeaseLost otherwise.
	ExtendLease(ctx context.Context, id, owner string, until time.Time) error

	// Finish stores the outcome of an item owner still holds and moves it
	// to status. Returns ErrLeaseLost otherwise.
	Finish(ctx context.Context, id, owner string, out Outcome) error

	// ExpireLeases fails every processing item whose lease ended before
	// now and returns their ids.
	ExpireLeases(ctx context.Context, now time.Time) ([]string, error)
}

// Outcome is the terminal state written by Finish.
type Outcome struct {
	Status      domain.QueueStatus
	Results     []domain.SendResult
	Error       string
	CompletedAt time.Time
}
