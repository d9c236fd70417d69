package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/service/dispatch"
	"github.com/ignite/dispatch-engine/internal/service/identity"
)

// Service implements the queue entry points.
type Service struct {
	repo       Repository
	dispatcher *dispatch.Dispatcher
	now        func() time.Time
}

// NewService creates a queue service. The dispatcher validates references
// when items are added.
func NewService(repo Repository, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, now: time.Now}
}

// AddInput holds the fields for scheduling a batch. A nil ScheduledAt
// means as soon as possible; an empty DomainID uses the active selection.
type AddInput struct {
	DomainID    string              `json:"domainId"`
	TemplateID  string              `json:"templateId"`
	Assignments []domain.Assignment `json:"assignments"`
	ScheduledAt *time.Time          `json:"scheduledAt,omitempty"`
}

// Add validates and persists a new pending item.
func (s *Service) Add(ctx context.Context, in AddInput) (*domain.QueueItem, error) {
	domainID := identity.DomainOrSelected(ctx, in.DomainID)

	b, err := s.dispatcher.Load(ctx, domainID, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Validate(ctx, b, in.Assignments); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &domain.QueueItem{
		ID:          uuid.New().String(),
		DomainID:    domainID,
		TemplateID:  in.TemplateID,
		Assignments: in.Assignments,
		ScheduledAt: now,
		Status:      domain.QueuePending,
		CreatedAt:   now,
	}
	if in.ScheduledAt != nil {
		item.ScheduledAt = in.ScheduledAt.UTC()
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create queue item: %w", err)
	}
	logger.Info("queue item added",
		"queue_id", item.ID,
		"domain_id", item.DomainID,
		"contacts", domain.ContactCount(item.Assignments),
		"scheduled_at", item.ScheduledAt.Format(time.RFC3339))
	return item, nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string) (*domain.QueueItem, error) {
	return s.repo.Get(ctx, id)
}

// List returns items in queue order, optionally for one domain.
func (s *Service) List(ctx context.Context, domainID string) ([]domain.QueueItem, error) {
	return s.repo.List(ctx, domainID)
}

// Cancel moves a pending item to cancelled. Any other state is an error.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.repo.Cancel(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	logger.Info("queue item cancelled", "queue_id", id)
	return nil
}

// ClearFinished removes completed and cancelled items.
func (s *Service) ClearFinished(ctx context.Context, domainID string) (int, error) {
	n, err := s.repo.DeleteFinished(ctx, domainID)
	if err != nil {
		return 0, fmt.Errorf("clear finished queue items: %w", err)
	}
	logger.Info("finished queue items cleared", "domain_id", domainID, "removed", n)
	return n, nil
}
