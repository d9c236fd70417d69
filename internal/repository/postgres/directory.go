package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// DirectoryRepo reads Domains, Accounts, Templates and Contacts.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed directory.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

const domainColumns = `id, name, domain, api_key, mail_agent, host, active,
	use_smtp, smtp_host, smtp_port, smtp_user, smtp_pass,
	total_sent, successful, failed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*domain.Domain, error) {
	d := &domain.Domain{}
	err := row.Scan(
		&d.ID, &d.Name, &d.Domain, &d.APIKey, &d.MailAgent, &d.Host, &d.Active,
		&d.UseSMTP, &d.SMTPHost, &d.SMTPPort, &d.SMTPUser, &d.SMTPPass,
		&d.Stats.TotalSent, &d.Stats.Successful, &d.Stats.Failed, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *DirectoryRepo) GetDomain(ctx context.Context, id string) (*domain.Domain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM dispatch_domains WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

const accountColumns = `id, domain_id, name, email, display_name, active,
	total_sent, successful, failed, created_at`

func scanAccount(row rowScanner) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.DomainID, &a.Name, &a.Email, &a.DisplayName, &a.Active,
		&a.Stats.TotalSent, &a.Stats.Successful, &a.Stats.Failed, &a.CreatedAt,
	)
	return a, err
}

func (r *DirectoryRepo) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM dispatch_accounts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

const templateColumns = `id, domain_id, name, template_key, subject, html_body, merge_fields, created_at`

func scanTemplate(row rowScanner) (*domain.Template, error) {
	t := &domain.Template{}
	var fields []byte
	if err := row.Scan(&t.ID, &t.DomainID, &t.Name, &t.TemplateKey, &t.Subject, &t.HTMLBody, &fields, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &t.MergeFields); err != nil {
			return nil, fmt.Errorf("decode merge fields of template %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func (r *DirectoryRepo) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM dispatch_templates WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// FirstTemplate returns the oldest template of a domain.
func (r *DirectoryRepo) FirstTemplate(ctx context.Context, domainID string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM dispatch_templates
		WHERE domain_id = $1 ORDER BY created_at, id LIMIT 1`, domainID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template for domain %s: %w", domainID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("first template: %w", err)
	}
	return t, nil
}

const contactColumns = `id, domain_id, account_id, name, surname, full_name, email,
	attributes, send_status, tags, created_at`

func scanContact(row rowScanner) (*domain.Contact, error) {
	c := &domain.Contact{}
	var attrs []byte
	var tags pq.StringArray
	if err := row.Scan(
		&c.ID, &c.DomainID, &c.AccountID, &c.Name, &c.Surname, &c.FullName, &c.Email,
		&attrs, &c.SendStatus, &tags, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &c.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of contact %s: %w", c.ID, err)
		}
	}
	c.Tags = []string(tags)
	return c, nil
}

func (r *DirectoryRepo) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM dispatch_contacts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *DirectoryRepo) GetContacts(ctx context.Context, ids []string) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM dispatch_contacts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Contact, 0, len(ids))
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// FirstContact returns the oldest contact of a domain.
func (r *DirectoryRepo) FirstContact(ctx context.Context, domainID string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM dispatch_contacts
		WHERE domain_id = $1 ORDER BY created_at, id LIMIT 1`, domainID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact for domain %s: %w", domainID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("first contact: %w", err)
	}
	return c, nil
}
