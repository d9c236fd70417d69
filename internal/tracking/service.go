package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Repository persists tracking events.
type Repository interface {
	SaveEvent(ctx context.Context, ev *domain.TrackingEvent) error

	// ListEvents returns events in arrival order. An empty messageID lists all.
	ListEvents(ctx context.Context, messageID string) ([]domain.TrackingEvent, error)
}

// webhookBody is the subset of the provider webhook the service reads.
type webhookBody struct {
	EventType string          `json:"event_type"`
	MessageID string          `json:"message_id"`
	Recipient string          `json:"recipient"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Service ingests and queries tracking events.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a tracking service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Ingest stores one webhook body. The raw body is kept as the event's
// payload. A missing or unparseable timestamp becomes the receive time.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*domain.TrackingEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, domain.Invalid("body", "invalid JSON: %v", err)
	}
	if strings.TrimSpace(body.EventType) == "" {
		return nil, domain.Invalid("event_type", "required")
	}

	ev := &domain.TrackingEvent{
		ID:        uuid.New().String(),
		EventType: body.EventType,
		MessageID: body.MessageID,
		Recipient: body.Recipient,
		Timestamp: parseTimestamp(body.Timestamp, s.now().UTC()),
		Payload:   json.RawMessage(append([]byte(nil), raw...)),
	}
	if err := s.repo.SaveEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("save tracking event: %w", err)
	}
	logger.Info("tracking event received",
		"event_type", ev.EventType,
		"message_id", ev.MessageID,
		"recipient", ev.Recipient)
	return ev, nil
}

// Events returns the events recorded for messageID.
func (s *Service) Events(ctx context.Context, messageID string) ([]domain.TrackingEvent, error) {
	if messageID == "" {
		return nil, domain.Invalid("messageId", "required")
	}
	return s.repo.ListEvents(ctx, messageID)
}

// parseTimestamp accepts RFC 3339 strings and unix seconds or millis.
func parseTimestamp(raw json.RawMessage, fallback time.Time) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return t.UTC()
		}
		return fallback
	}
	var n int64
	if json.Unmarshal(raw, &n) == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return fallback
}
