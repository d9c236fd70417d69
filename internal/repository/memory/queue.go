package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/queue"
)

// QueueRepo implements queue.Repository in memory.
type QueueRepo struct{ s *Store }

var _ queue.Repository = (*QueueRepo)(nil)

func (r *QueueRepo) Create(_ context.Context, item *domain.QueueItem) error {
	cp := cloneQueueItem(*item)
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	r.s.queue.put(cp.ID, &cp)
	return nil
}

func (r *QueueRepo) Get(_ context.Context, id string) (*domain.QueueItem, error) {
	r.s.queue.mu.RLock()
	defer r.s.queue.mu.RUnlock()
	q, ok := r.s.queue.items[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	cp := cloneQueueItem(*q)
	return &cp, nil
}

func (r *QueueRepo) List(_ context.Context, domainID string) ([]domain.QueueItem, error) {
	r.s.queue.mu.RLock()
	defer r.s.queue.mu.RUnlock()
	out := make([]domain.QueueItem, 0, len(r.s.queue.order))
	for _, q := range r.ordered() {
		if domainID == "" || q.DomainID == domainID {
			out = append(out, cloneQueueItem(*q))
		}
	}
	return out, nil
}

// ordered returns items by scheduledAt, then createdAt. Callers hold mu.
func (r *QueueRepo) ordered() []*domain.QueueItem {
	items := make([]*domain.QueueItem, 0, len(r.s.queue.order))
	for _, id := range r.s.queue.order {
		items = append(items, r.s.queue.items[id])
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ScheduledAt.Before(items[j].ScheduledAt)
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (r *QueueRepo) Cancel(_ context.Context, id string, at time.Time) error {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	q, ok := r.s.queue.items[id]
	if !ok {
		return queue.ErrNotFound
	}
	if q.Status != domain.QueuePending {
		return queue.ErrNotCancellable
	}
	q.Status = domain.QueueCancelled
	q.CompletedAt = &at
	return nil
}

func (r *QueueRepo) DeleteFinished(_ context.Context, domainID string) (int, error) {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	var drop []string
	for _, id := range r.s.queue.order {
		q := r.s.queue.items[id]
		if domainID != "" && q.DomainID != domainID {
			continue
		}
		if q.Status == domain.QueueCompleted || q.Status == domain.QueueCancelled {
			drop = append(drop, id)
		}
	}
	for _, id := range drop {
		r.s.queue.remove(id)
	}
	return len(drop), nil
}

func (r *QueueRepo) ClaimNext(_ context.Context, owner string, now time.Time, lease time.Duration) (*domain.QueueItem, error) {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	for _, q := range r.ordered() {
		if !q.IsDue(now) {
			continue
		}
		started := now
		expires := now.Add(lease)
		q.Status = domain.QueueProcessing
		q.StartedAt = &started
		q.ClaimedBy = owner
		q.LeaseExpiresAt = &expires
		cp := cloneQueueItem(*q)
		return &cp, nil
	}
	return nil, nil
}

// held returns the item if owner holds its claim. Callers hold mu.
func (r *QueueRepo) held(id, owner string) (*domain.QueueItem, error) {
	q, ok := r.s.queue.items[id]
	if !ok || q.Status != domain.QueueProcessing || q.ClaimedBy != owner {
		return nil, queue.ErrLeaseLost
	}
	return q, nil
}

func (r *QueueRepo) ExtendLease(_ context.Context, id, owner string, until time.Time) error {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	q, err := r.held(id, owner)
	if err != nil {
		return err
	}
	q.LeaseExpiresAt = &until
	return nil
}

func (r *QueueRepo) Finish(_ context.Context, id, owner string, out queue.Outcome) error {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	q, err := r.held(id, owner)
	if err != nil {
		return err
	}
	at := out.CompletedAt
	q.Status = out.Status
	q.Results = cloneResults(out.Results)
	q.Error = out.Error
	q.CompletedAt = &at
	q.LeaseExpiresAt = nil
	return nil
}

func (r *QueueRepo) ExpireLeases(_ context.Context, now time.Time) ([]string, error) {
	r.s.queue.mu.Lock()
	defer r.s.queue.mu.Unlock()
	var ids []string
	for _, id := range r.s.queue.order {
		q := r.s.queue.items[id]
		if q.Status != domain.QueueProcessing || q.LeaseExpiresAt == nil || !q.LeaseExpiresAt.Before(now) {
			continue
		}
		at := now
		q.Status = domain.QueueFailed
		q.Error = queue.ExpiredLeaseError
		q.CompletedAt = &at
		q.LeaseExpiresAt = nil
		ids = append(ids, id)
	}
	return ids, nil
}
