package domain

import (
	"strings"
	"time"
)

// Stats holds cumulative send counters for a Domain or an Account.
type Stats struct {
	TotalSent  int `json:"totalSent" db:"total_sent"`
	Successful int `json:"successful" db:"successful"`
	Failed     int `json:"failed" db:"failed"`
}

// Add increments the counters by one result.
func (s *Stats) Add(status SendStatus) {
	s.TotalSent++
	if status == StatusSent {
		s.Successful++
	} else {
		s.Failed++
	}
}

// Domain is a configured outbound sending identity. Exactly one Domain may
// be active at a time; the active one is tracked by Settings.ActiveDomainID.
type Domain struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Domain    string `json:"domain" db:"domain"`
	APIKey    string `json:"-" db:"api_key"`
	MailAgent string `json:"mailAgent" db:"mail_agent"`
	Host      string `json:"host" db:"host"`
	Active    bool   `json:"active" db:"active"`

	// Direct relay settings, used when UseSMTP is set.
	UseSMTP  bool   `json:"useSMTP" db:"use_smtp"`
	SMTPHost string `json:"smtpHost,omitempty" db:"smtp_host"`
	SMTPPort int    `json:"smtpPort,omitempty" db:"smtp_port"`
	SMTPUser string `json:"-" db:"smtp_user"`
	SMTPPass string `json:"-" db:"smtp_pass"`

	Stats     Stats     `json:"stats"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultProviderHost is used when a Domain has no explicit API host.
const DefaultProviderHost = "api.zeptomail.com"

// ProviderHost returns the API host, falling back to the provider default.
func (d *Domain) ProviderHost() string {
	if d.Host == "" {
		return DefaultProviderHost
	}
	return d.Host
}

// Account is a "from" identity owned by exactly one Domain.
type Account struct {
	ID          string    `json:"id" db:"id"`
	DomainID    string    `json:"domainId" db:"domain_id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"displayName" db:"display_name"`
	Active      bool      `json:"active" db:"active"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// SenderName returns the display name, falling back to the plain name.
func (a *Account) SenderName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// MergeKind enumerates how a template merge field is resolved.
type MergeKind string

const (
	MergeColumn      MergeKind = "column"
	MergeText        MergeKind = "text"
	MergeAccountName MergeKind = "auto"
	MergeAccountInfo MergeKind = "account_info"
)

// Account-info parts accepted by MergeAccountInfo.
const (
	AccountFirstName = "first_name"
	AccountLastName  = "last_name"
	AccountFullName  = "full_name"
	AccountEmail     = "email"
)

// MergeField maps one template placeholder to its value source.
type MergeField struct {
	Kind        MergeKind `json:"type"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
}

// Template is a reusable message definition owned by one Domain.
type Template struct {
	ID          string                `json:"id" db:"id"`
	DomainID    string                `json:"domainId" db:"domain_id"`
	Name        string                `json:"name" db:"name"`
	TemplateKey string                `json:"templateKey" db:"template_key"`
	Subject     string                `json:"subject" db:"subject"`
	HTMLBody    string                `json:"htmlBody" db:"html_body"`
	MergeFields map[string]MergeField `json:"mergeFieldMapping" db:"merge_fields"`
	CreatedAt   time.Time             `json:"createdAt" db:"created_at"`
}

// IsProviderTemplate reports whether sends go through the provider's
// templated-send operation rather than a literal body.
func (t *Template) IsProviderTemplate() bool {
	return strings.TrimSpace(t.TemplateKey) != ""
}
