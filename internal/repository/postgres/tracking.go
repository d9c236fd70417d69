package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/tracking"
)

// TrackingRepo implements tracking.Repository against PostgreSQL.
type TrackingRepo struct{ db *sql.DB }

var _ tracking.Repository = (*TrackingRepo)(nil)

// NewTrackingRepo creates a Postgres-backed tracking repository.
func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{db: db} }

func (r *TrackingRepo) SaveEvent(ctx context.Context, ev *domain.TrackingEvent) error {
	var payload any
	if len(ev.Payload) > 0 {
		payload = []byte(ev.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_tracking_events (id, event_type, message_id, recipient, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.EventType, ev.MessageID, ev.Recipient, ev.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("save tracking event: %w", err)
	}
	return nil
}

func (r *TrackingRepo) ListEvents(ctx context.Context, messageID string) ([]domain.TrackingEvent, error) {
	q := `SELECT id, event_type, message_id, recipient, occurred_at, payload FROM dispatch_tracking_events`
	var args []any
	if messageID != "" {
		q += ` WHERE message_id = $1`
		args = append(args, messageID)
	}
	q += ` ORDER BY received_at, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	defer rows.Close()

	out := []domain.TrackingEvent{}
	for rows.Next() {
		var ev domain.TrackingEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.MessageID, &ev.Recipient, &ev.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}
