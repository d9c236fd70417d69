package queue

import (
	"errors"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Sentinel errors for the queue service layer.
var (
	ErrNotFound       = fmt.Errorf("queue item %w", domain.ErrNotFound)
	ErrNotCancellable = fmt.Errorf("only pending queue items can be cancelled: %w", domain.ErrConflict)
	ErrLeaseLost      = errors.New("queue item lease lost")
)

// ExpiredLeaseError is the error recorded on items whose claim ran out.
const ExpiredLeaseError = "lease expired before processing finished"

// PersistenceError is a store failure while processing an item. It aborts
// the remaining work for that item, which is then marked failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
