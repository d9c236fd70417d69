package domain

import (
	"strings"
	"time"
)

// SendStatus is the per-contact delivery state, and also the status carried
// by a SendResult (which is only ever sent or failed).
type SendStatus string

const (
	StatusUnsent SendStatus = "unsent"
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// Contact is a recipient owned by exactly one Account.
type Contact struct {
	ID         string            `json:"id" db:"id"`
	DomainID   string            `json:"domainId" db:"domain_id"`
	AccountID  string            `json:"accountId" db:"account_id"`
	Name       string            `json:"name" db:"name"`
	Surname    string            `json:"surname" db:"surname"`
	FullName   string            `json:"full_name" db:"full_name"`
	Email      string            `json:"email" db:"email"`
	Attributes map[string]string `json:"attributes,omitempty" db:"attributes"`
	SendStatus SendStatus        `json:"sendStatus" db:"send_status"`
	Tags       []string          `json:"tags,omitempty" db:"tags"`
	CreatedAt  time.Time         `json:"createdAt" db:"created_at"`
}

// Attribute returns the named attribute. Built-in fields are addressable by
// their JSON names; everything else comes from Attributes.
func (c *Contact) Attribute(name string) string {
	switch name {
	case "id":
		return c.ID
	case "name":
		return c.Name
	case "surname":
		return c.Surname
	case "full_name":
		return c.FullName
	case "email":
		return c.Email
	}
	return c.Attributes[name]
}

// RecipientName returns the best display name for the To header.
func (c *Contact) RecipientName() string {
	if c.FullName != "" {
		return c.FullName
	}
	return strings.TrimSpace(c.Name + " " + c.Surname)
}
