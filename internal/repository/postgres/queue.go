package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/queue"
)

// QueueRepo implements queue.Repository against PostgreSQL.
type QueueRepo struct{ db *sql.DB }

var _ queue.Repository = (*QueueRepo)(nil)

// NewQueueRepo creates a Postgres-backed queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const queueColumns = `id, domain_id, template_id, assignments, scheduled_at, status,
	results, error, claimed_by, lease_expires_at, created_at, started_at, completed_at`

func scanQueueItem(row rowScanner) (*domain.QueueItem, error) {
	q := &domain.QueueItem{}
	var assignments, results []byte
	var lease, started, completed sql.NullTime
	if err := row.Scan(
		&q.ID, &q.DomainID, &q.TemplateID, &assignments, &q.ScheduledAt, &q.Status,
		&results, &q.Error, &q.ClaimedBy, &lease, &q.CreatedAt, &started, &completed,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(assignments, &q.Assignments); err != nil {
		return nil, fmt.Errorf("decode assignments of %s: %w", q.ID, err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &q.Results); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", q.ID, err)
		}
	}
	q.LeaseExpiresAt = timePtr(lease)
	q.StartedAt = timePtr(started)
	q.CompletedAt = timePtr(completed)
	return q, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (r *QueueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	assignments, err := json.Marshal(item.Assignments)
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dispatch_queue
			(id, domain_id, template_id, assignments, scheduled_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.DomainID, item.TemplateID, assignments, item.ScheduledAt, item.Status, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create queue item: %w", err)
	}
	return nil
}

func (r *QueueRepo) Get(ctx context.Context, id string) (*domain.QueueItem, error) {
	q, err := scanQueueItem(r.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM dispatch_queue WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return q, nil
}

func (r *QueueRepo) List(ctx context.Context, domainID string) ([]domain.QueueItem, error) {
	q := `SELECT ` + queueColumns + ` FROM dispatch_queue`
	var args []any
	if domainID != "" {
		q += ` WHERE domain_id = $1`
		args = append(args, domainID)
	}
	q += ` ORDER BY scheduled_at, created_at`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	out := []domain.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (r *QueueRepo) Cancel(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_queue SET status = 'cancelled', completed_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("cancel queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM dispatch_queue WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("cancel queue item: %w", err)
	}
	if !exists {
		return queue.ErrNotFound
	}
	return queue.ErrNotCancellable
}

func (r *QueueRepo) DeleteFinished(ctx context.Context, domainID string) (int, error) {
	q := `DELETE FROM dispatch_queue WHERE status IN ('completed', 'cancelled')`
	var args []any
	if domainID != "" {
		q += ` AND domain_id = $1`
		args = append(args, domainID)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete finished queue items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *QueueRepo) ClaimNext(ctx context.Context, owner string, now time.Time, lease time.Duration) (*domain.QueueItem, error) {
	item, err := scanQueueItem(r.db.QueryRowContext(ctx, `
		WITH next AS (
			SELECT id FROM dispatch_queue
			WHERE status = 'pending' AND scheduled_at <= $2
			ORDER BY scheduled_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE dispatch_queue q
		SET status = 'processing',
		    claimed_by = $1,
		    started_at = $2,
		    lease_expires_at = $3
		FROM next
		WHERE q.id = next.id
		RETURNING `+qualified("q", queueColumns),
		owner, now, now.Add(lease)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim queue item: %w", err)
	}
	return item, nil
}

func (r *QueueRepo) ExtendLease(ctx context.Context, id, owner string, until time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_queue SET lease_expires_at = $3
		WHERE id = $1 AND claimed_by = $2 AND status = 'processing'
	`, id, owner, until)
	if err != nil {
		return fmt.Errorf("extend lease: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return queue.ErrLeaseLost
	}
	return nil
}

func (r *QueueRepo) Finish(ctx context.Context, id, owner string, out queue.Outcome) error {
	results, err := json.Marshal(out.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispatch_queue
		SET status = $3, results = $4, error = $5, completed_at = $6, lease_expires_at = NULL
		WHERE id = $1 AND claimed_by = $2 AND status = 'processing'
	`, id, owner, out.Status, results, out.Error, out.CompletedAt)
	if err != nil {
		return fmt.Errorf("finish queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return queue.ErrLeaseLost
	}
	return nil
}

func (r *QueueRepo) ExpireLeases(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE dispatch_queue
		SET status = 'failed', error = $2, completed_at = $1, lease_expires_at = NULL
		WHERE status = 'processing' AND lease_expires_at < $1
		RETURNING id
	`, now, queue.ExpiredLeaseError)
	if err != nil {
		return nil, fmt.Errorf("expire leases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
