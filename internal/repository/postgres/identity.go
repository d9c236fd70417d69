package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/service/identity"
)

// IdentityRepo implements identity.Repository against PostgreSQL.
type IdentityRepo struct{ db *sql.DB }

var _ identity.Repository = (*IdentityRepo)(nil)

// NewIdentityRepo creates a Postgres-backed identity repository.
func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

func (r *IdentityRepo) GetSettings(ctx context.Context) (*domain.Settings, error) {
	st := &domain.Settings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT auto_process_queue, active_domain_id FROM dispatch_settings WHERE id = 1`,
	).Scan(&st.AutoProcessQueue, &st.ActiveDomainID)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (r *IdentityRepo) SetAutoProcess(ctx context.Context, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_settings (id, auto_process_queue) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET auto_process_queue = EXCLUDED.auto_process_queue
	`, enabled)
	if err != nil {
		return fmt.Errorf("set auto process: %w", err)
	}
	return nil
}

func (r *IdentityRepo) ActivateDomain(ctx context.Context, id string) (*domain.Domain, error) {
	var d *domain.Domain
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE dispatch_domains SET active = FALSE, updated_at = NOW() WHERE active AND id <> $1`, id); err != nil {
			return fmt.Errorf("deactivate domains: %w", err)
		}
		var err error
		d, err = scanDomain(tx.QueryRowContext(ctx, `
			UPDATE dispatch_domains SET active = TRUE, updated_at = NOW()
			WHERE id = $1
			RETURNING `+domainColumns, id))
		if err == sql.ErrNoRows {
			return fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("activate domain: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dispatch_settings (id, active_domain_id) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET active_domain_id = EXCLUDED.active_domain_id
		`, id); err != nil {
			return fmt.Errorf("save active domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *IdentityRepo) ToggleAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		UPDATE dispatch_accounts SET active = NOT active
		WHERE id = $1
		RETURNING `+accountColumns, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("toggle account: %w", err)
	}
	return a, nil
}
