package channel

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/merge"
)

// Channel names recorded on SendError.
const (
	NameAPI  = "api"
	NameSMTP = "smtp"
)

// DefaultSubject is used when a template has no subject.
const DefaultSubject = "No Subject"

// Channel sends one message for a Domain and returns the provider message id.
type Channel interface {
	Send(ctx context.Context, d *domain.Domain, msg *Message) (string, error)
}

// Address is an RFC 5322 mailbox.
type Address struct {
	Email string `json:"address"`
	Name  string `json:"name,omitempty"`
}

func (a Address) String() string {
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is one recipient's send request. MergeInfo holds the resolved
// merge fields; TemplateKey selects a provider-side template.
type Message struct {
	From        Address
	To          Address
	Subject     string
	HTMLBody    string
	TemplateKey string
	MergeInfo   map[string]string
}

// Compose builds the message for one contact from its template, sending
// account and resolved merge fields.
func Compose(t *domain.Template, a *domain.Account, c *domain.Contact, values map[string]string) *Message {
	msg := &Message{
		From:      Address{Email: a.Email, Name: a.DisplayName},
		To:        Address{Email: c.Email, Name: c.RecipientName()},
		Subject:   t.Subject,
		HTMLBody:  t.HTMLBody,
		MergeInfo: values,
	}
	if t.IsProviderTemplate() {
		msg.TemplateKey = t.TemplateKey
	}
	return msg
}

// Rendered returns subject and body with merge fields substituted.
func (m *Message) Rendered() (subject, body string) {
	subject = m.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return merge.Substitute(subject, m.MergeInfo), merge.Substitute(m.HTMLBody, m.MergeInfo)
}

// SendError is a failed delivery attempt for one recipient.
type SendError struct {
	Channel    string
	StatusCode int    // HTTP status or SMTP reply code, 0 if none
	Payload    string // raw provider response, if any
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.Payload != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s send failed (%d): %s", e.Channel, e.StatusCode, e.Payload)
	case e.Payload != "":
		return fmt.Sprintf("%s send failed: %s", e.Channel, e.Payload)
	case e.Err != nil:
		return fmt.Sprintf("%s send failed: %v", e.Channel, e.Err)
	}
	return e.Channel + " send failed"
}

func (e *SendError) Unwrap() error { return e.Err }

// AsSendError extracts a *SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	ok := errors.As(err, &se)
	return se, ok
}

// Ensure Router implements Channel
var _ Channel = (*Router)(nil)

// Router sends through SMTP for domains configured for direct relay and
// through the provider API otherwise.
type Router struct {
	api  Channel
	smtp Channel
}

// NewRouter returns a Router over the two transports.
func NewRouter(api, smtp Channel) *Router {
	return &Router{api: api, smtp: smtp}
}

// Send implements Channel.
func (r *Router) Send(ctx context.Context, d *domain.Domain, msg *Message) (string, error) {
	return r.For(d).Send(ctx, d, msg)
}

// For returns the channel used for d.
func (r *Router) For(d *domain.Domain) Channel {
	if d.UseSMTP {
		return r.smtp
	}
	return r.api
}
