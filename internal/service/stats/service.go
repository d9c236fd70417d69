package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Service implements the stats and history aggregator.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a stats service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// BatchRef identifies what a set of results belongs to. QueueID is empty
// for immediate sends.
type BatchRef struct {
	DomainID   string
	TemplateID string
	QueueID    string
}

// Record applies results to the counters and contact statuses and appends
// the history record.
func (s *Service) Record(ctx context.Context, ref BatchRef, results []domain.SendResult) (*domain.HistoryRecord, error) {
	rec := &domain.HistoryRecord{
		ID:         uuid.New().String(),
		DomainID:   ref.DomainID,
		TemplateID: ref.TemplateID,
		QueueID:    ref.QueueID,
		Results:    results,
		SentAt:     s.now().UTC(),
	}
	if rec.Results == nil {
		rec.Results = []domain.SendResult{}
	}

	if err := s.repo.ApplyResults(ctx, rec); err != nil {
		return nil, fmt.Errorf("apply results: %w", err)
	}

	sent, failed := domain.Tally(results)
	logger.Info("batch recorded",
		"history_id", rec.ID,
		"domain_id", ref.DomainID,
		"queue_id", ref.QueueID,
		"sent", sent,
		"failed", failed)
	return rec, nil
}

// History lists history records, optionally for one domain.
func (s *Service) History(ctx context.Context, domainID string) ([]domain.HistoryRecord, error) {
	return s.repo.ListHistory(ctx, domainID)
}

// Delete removes one history record. Unless keepContacts is set, the
// contacts it references go back to unsent.
func (s *Service) Delete(ctx context.Context, id string, keepContacts bool) error {
	n, err := s.repo.DeleteHistory(ctx, []string{id}, !keepContacts)
	if err != nil {
		return fmt.Errorf("delete history %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes several history records and returns how many existed.
func (s *Service) BulkDelete(ctx context.Context, ids []string, keepContacts bool) (int, error) {
	if len(ids) == 0 {
		return 0, domain.Invalid("ids", "at least one id is required")
	}
	n, err := s.repo.DeleteHistory(ctx, ids, !keepContacts)
	if err != nil {
		return 0, fmt.Errorf("bulk delete history: %w", err)
	}
	logger.Info("history deleted", "requested", len(ids), "deleted", n, "keep_contacts", keepContacts)
	return n, nil
}
