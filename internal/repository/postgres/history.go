package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/stats"
)

// HistoryRepo implements stats.Repository against PostgreSQL.
type HistoryRepo struct{ db *sql.DB }

var _ stats.Repository = (*HistoryRepo)(nil)

// NewHistoryRepo creates a Postgres-backed history repository.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) ApplyResults(ctx context.Context, rec *domain.HistoryRecord) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	var domainStats domain.Stats
	accountStats := make(map[string]*domain.Stats)
	finalStatus := make(map[string]domain.SendStatus)
	for _, res := range rec.Results {
		domainStats.Add(res.Status)
		s, ok := accountStats[res.AccountID]
		if !ok {
			s = &domain.Stats{}
			accountStats[res.AccountID] = s
		}
		s.Add(res.Status)
		finalStatus[res.ContactID] = res.Status
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dispatch_history (id, domain_id, template_id, queue_id, results, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, rec.DomainID, rec.TemplateID, rec.QueueID, results, rec.SentAt); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		if domainStats.TotalSent == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE dispatch_domains
			SET total_sent = total_sent + $2, successful = successful + $3, failed = failed + $4, updated_at = NOW()
			WHERE id = $1
		`, rec.DomainID, domainStats.TotalSent, domainStats.Successful, domainStats.Failed); err != nil {
			return fmt.Errorf("update domain stats: %w", err)
		}

		for _, id := range sortedKeys(accountStats) {
			s := accountStats[id]
			if _, err := tx.ExecContext(ctx, `
				UPDATE dispatch_accounts
				SET total_sent = total_sent + $2, successful = successful + $3, failed = failed + $4
				WHERE id = $1
			`, id, s.TotalSent, s.Successful, s.Failed); err != nil {
				return fmt.Errorf("update account stats: %w", err)
			}
		}

		byStatus := make(map[domain.SendStatus][]string)
		for _, id := range sortedKeys(finalStatus) {
			byStatus[finalStatus[id]] = append(byStatus[finalStatus[id]], id)
		}
		for _, status := range []domain.SendStatus{domain.StatusSent, domain.StatusFailed} {
			ids := byStatus[status]
			if len(ids) == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE dispatch_contacts SET send_status = $1 WHERE id = ANY($2)`,
				status, pq.Array(ids)); err != nil {
				return fmt.Errorf("update contact status: %w", err)
			}
		}
		return nil
	})
}

func (r *HistoryRepo) ListHistory(ctx context.Context, domainID string) ([]domain.HistoryRecord, error) {
	q := `SELECT id, domain_id, template_id, queue_id, results, sent_at FROM dispatch_history`
	var args []any
	if domainID != "" {
		q += ` WHERE domain_id = $1`
		args = append(args, domainID)
	}
	q += ` ORDER BY sent_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := []domain.HistoryRecord{}
	for rows.Next() {
		var h domain.HistoryRecord
		var results []byte
		if err := rows.Scan(&h.ID, &h.DomainID, &h.TemplateID, &h.QueueID, &results, &h.SentAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal(results, &h.Results); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", h.ID, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) DeleteHistory(ctx context.Context, ids []string, resetContacts bool) (int, error) {
	removed := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`DELETE FROM dispatch_history WHERE id = ANY($1) RETURNING results`, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		seen := make(map[string]bool)
		var contacts []string
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return fmt.Errorf("scan deleted history: %w", err)
			}
			removed++
			var results []domain.SendResult
			if err := json.Unmarshal(raw, &results); err != nil {
				rows.Close()
				return fmt.Errorf("decode deleted history: %w", err)
			}
			for _, res := range results {
				if !seen[res.ContactID] {
					seen[res.ContactID] = true
					contacts = append(contacts, res.ContactID)
				}
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}

		if !resetContacts || len(contacts) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE dispatch_contacts SET send_status = 'unsent' WHERE id = ANY($1)`,
			pq.Array(contacts)); err != nil {
			return fmt.Errorf("reset contacts: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
