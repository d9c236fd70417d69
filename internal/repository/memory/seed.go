package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Seed is the YAML layout accepted by LoadSeed.
type Seed struct {
	Settings  seedSettings   `yaml:"settings"`
	Domains   []seedDomain   `yaml:"domains"`
	Accounts  []seedAccount  `yaml:"accounts"`
	Templates []seedTemplate `yaml:"templates"`
	Contacts  []seedContact  `yaml:"contacts"`
}

type seedSettings struct {
	AutoProcessQueue bool   `yaml:"auto_process_queue"`
	ActiveDomainID   string `yaml:"active_domain_id"`
}

type seedDomain struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Domain    string `yaml:"domain"`
	APIKey    string `yaml:"api_key"`
	MailAgent string `yaml:"mail_agent"`
	Host      string `yaml:"host"`
	UseSMTP   bool   `yaml:"use_smtp"`
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	SMTPUser  string `yaml:"smtp_user"`
	SMTPPass  string `yaml:"smtp_pass"`
}

type seedAccount struct {
	ID          string `yaml:"id"`
	DomainID    string `yaml:"domain_id"`
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
	Active      *bool  `yaml:"active"`
}

type seedMergeField struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

type seedTemplate struct {
	ID          string                    `yaml:"id"`
	DomainID    string                    `yaml:"domain_id"`
	Name        string                    `yaml:"name"`
	TemplateKey string                    `yaml:"template_key"`
	Subject     string                    `yaml:"subject"`
	HTMLBody    string                    `yaml:"html_body"`
	MergeFields map[string]seedMergeField `yaml:"merge_fields"`
}

type seedContact struct {
	ID         string            `yaml:"id"`
	DomainID   string            `yaml:"domain_id"`
	AccountID  string            `yaml:"account_id"`
	Name       string            `yaml:"name"`
	Surname    string            `yaml:"surname"`
	FullName   string            `yaml:"full_name"`
	Email      string            `yaml:"email"`
	Attributes map[string]string `yaml:"attributes"`
	Tags       []string          `yaml:"tags"`
}

// LoadSeed reads a seed file and applies it to s.
func LoadSeed(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s.Apply(seed)
}

// Apply inserts every seeded entity. Accounts default to active and the
// active domain, when set, must be one of the seeded domains.
func (s *Store) Apply(seed Seed) error {
	now := time.Now().UTC()
	known := make(map[string]bool, len(seed.Domains))

	for _, d := range seed.Domains {
		if d.ID == "" {
			return fmt.Errorf("seed domain %q: id is required", d.Name)
		}
		known[d.ID] = true
		s.PutDomain(domain.Domain{
			ID: d.ID, Name: d.Name, Domain: d.Domain, APIKey: d.APIKey,
			MailAgent: d.MailAgent, Host: d.Host,
			UseSMTP: d.UseSMTP, SMTPHost: d.SMTPHost, SMTPPort: d.SMTPPort,
			SMTPUser: d.SMTPUser, SMTPPass: d.SMTPPass,
			Active:    d.ID == seed.Settings.ActiveDomainID,
			CreatedAt: now, UpdatedAt: now,
		})
	}
	if id := seed.Settings.ActiveDomainID; id != "" && !known[id] {
		return fmt.Errorf("seed active domain %s: %w", id, domain.ErrNotFound)
	}

	for _, a := range seed.Accounts {
		active := a.Active == nil || *a.Active
		s.PutAccount(domain.Account{
			ID: a.ID, DomainID: a.DomainID, Name: a.Name, Email: a.Email,
			DisplayName: a.DisplayName, Active: active, CreatedAt: now,
		})
	}

	for _, t := range seed.Templates {
		fields := make(map[string]domain.MergeField, len(t.MergeFields))
		for name, f := range t.MergeFields {
			fields[name] = domain.MergeField{Kind: domain.MergeKind(f.Type), Value: f.Value}
		}
		s.PutTemplate(domain.Template{
			ID: t.ID, DomainID: t.DomainID, Name: t.Name, TemplateKey: t.TemplateKey,
			Subject: t.Subject, HTMLBody: t.HTMLBody, MergeFields: fields, CreatedAt: now,
		})
	}

	for _, c := range seed.Contacts {
		s.PutContact(domain.Contact{
			ID: c.ID, DomainID: c.DomainID, AccountID: c.AccountID,
			Name: c.Name, Surname: c.Surname, FullName: c.FullName, Email: c.Email,
			Attributes: c.Attributes, Tags: c.Tags, CreatedAt: now,
		})
	}

	s.PutSettings(domain.Settings{
		AutoProcessQueue: seed.Settings.AutoProcessQueue,
		ActiveDomainID:   seed.Settings.ActiveDomainID,
	})
	return nil
}
