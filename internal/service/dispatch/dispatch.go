package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/dispatch-engine/internal/channel"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/merge"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// DefaultSendDelay is the pause between consecutive sends in one batch.
const DefaultSendDelay = 500 * time.Millisecond

// Batch is a loaded Domain and Template with the template's compiled
// merge layout. Build one with Load.
type Batch struct {
	Domain   *domain.Domain
	Template *domain.Template
	Layout   *merge.Layout
}

// AfterAssignment runs after each assignment completes. index is the
// position of the finished assignment and results holds every result so far.
type AfterAssignment func(ctx context.Context, index int, results []domain.SendResult) error

// Dispatcher executes batches against a Directory and a Channel.
type Dispatcher struct {
	dir   Directory
	ch    channel.Channel
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a Dispatcher. A negative delay is treated as zero.
func New(dir Directory, ch channel.Channel, delay time.Duration) *Dispatcher {
	if delay < 0 {
		delay = 0
	}
	return &Dispatcher{dir: dir, ch: ch, delay: delay, sleep: sleepCtx}
}

// Load fetches the Domain and Template of a batch and checks that they
// belong together. Unknown ids and a bad merge mapping are validation
// errors; anything else is a read failure.
func (d *Dispatcher) Load(ctx context.Context, domainID, templateID string) (*Batch, error) {
	if domainID == "" {
		return nil, domain.Invalid("domainId", "required")
	}
	if templateID == "" {
		return nil, domain.Invalid("templateId", "required")
	}

	dom, err := d.dir.GetDomain(ctx, domainID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Invalid("domainId", "domain %s not found", domainID)
	}
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", domainID, err)
	}

	tpl, err := d.dir.GetTemplate(ctx, templateID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Invalid("templateId", "template %s not found", templateID)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", templateID, err)
	}
	if tpl.DomainID != dom.ID {
		return nil, domain.Invalid("templateId", "template %s does not belong to domain %s", templateID, domainID)
	}

	layout, err := merge.Compile(tpl.MergeFields)
	if err != nil {
		return nil, err
	}
	return &Batch{Domain: dom, Template: tpl, Layout: layout}, nil
}

// Validate checks every reference in assignments before a batch is
// accepted: each account exists, is active and belongs to the batch's
// Domain, and each contact exists under the same Domain.
func (d *Dispatcher) Validate(ctx context.Context, b *Batch, assignments []domain.Assignment) error {
	if len(assignments) == 0 {
		return domain.Invalid("assignments", "at least one assignment is required")
	}
	if domain.ContactCount(assignments) == 0 {
		return domain.Invalid("assignments", "no contacts selected")
	}

	for i, a := range assignments {
		acc, err := d.dir.GetAccount(ctx, a.AccountID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid(fmt.Sprintf("assignments[%d].accountId", i), "account %s not found", a.AccountID)
		}
		if err != nil {
			return fmt.Errorf("load account %s: %w", a.AccountID, err)
		}
		if acc.DomainID != b.Domain.ID {
			return domain.Invalid(fmt.Sprintf("assignments[%d].accountId", i), "account %s does not belong to domain %s", acc.ID, b.Domain.ID)
		}
		if !acc.Active {
			return domain.Invalid(fmt.Sprintf("assignments[%d].accountId", i), "account %s is inactive", acc.ID)
		}

		contacts, err := d.dir.GetContacts(ctx, a.ContactIDs)
		if err != nil {
			return fmt.Errorf("load contacts: %w", err)
		}
		found := make(map[string]*domain.Contact, len(contacts))
		for j := range contacts {
			found[contacts[j].ID] = &contacts[j]
		}
		for _, id := range a.ContactIDs {
			c, ok := found[id]
			if !ok {
				return domain.Invalid(fmt.Sprintf("assignments[%d].contactIds", i), "contact %s not found", id)
			}
			if c.DomainID != b.Domain.ID {
				return domain.Invalid(fmt.Sprintf("assignments[%d].contactIds", i), "contact %s does not belong to domain %s", id, b.Domain.ID)
			}
		}
	}
	return nil
}

// Dispatch sends every contact of every assignment in order and returns
// one SendResult per contact id.
//
// References that disappeared since validation become failed results.
// A read error from the Directory, or an error from after, stops the batch
// and is returned along with the results produced so far.
func (d *Dispatcher) Dispatch(ctx context.Context, b *Batch, assignments []domain.Assignment, after AfterAssignment) ([]domain.SendResult, error) {
	total := domain.ContactCount(assignments)
	results := make([]domain.SendResult, 0, total)
	attempts := 0
	start := time.Now()

	logger.Info("dispatch batch started",
		"domain_id", b.Domain.ID,
		"template_id", b.Template.ID,
		"assignments", len(assignments),
		"contacts", total)

	for i, a := range assignments {
		acc, err := d.dir.GetAccount(ctx, a.AccountID)
		if errors.Is(err, domain.ErrNotFound) {
			acc = nil
		} else if err != nil {
			return results, fmt.Errorf("load account %s: %w", a.AccountID, err)
		}
		if reason := accountUnusable(acc, b.Domain.ID); reason != "" {
			for _, id := range a.ContactIDs {
				results = append(results, failed(a.AccountID, id, "", reason))
			}
		} else {
			contacts, err := d.dir.GetContacts(ctx, a.ContactIDs)
			if err != nil {
				return results, fmt.Errorf("load contacts for account %s: %w", a.AccountID, err)
			}
			byID := make(map[string]*domain.Contact, len(contacts))
			for j := range contacts {
				byID[contacts[j].ID] = &contacts[j]
			}

			for _, id := range a.ContactIDs {
				c, ok := byID[id]
				if !ok {
					results = append(results, failed(acc.ID, id, "", "contact not found"))
					continue
				}
				if c.DomainID != b.Domain.ID {
					results = append(results, failed(acc.ID, id, c.Email, "contact does not belong to domain"))
					continue
				}
				if attempts > 0 && d.delay > 0 {
					d.sleep(ctx, d.delay)
				}
				attempts++
				results = append(results, d.sendOne(ctx, b, acc, c))
			}
		}

		if after != nil {
			if err := after(ctx, i, results); err != nil {
				return results, err
			}
		}
	}

	sent, fails := domain.Tally(results)
	logger.Info("dispatch batch finished",
		"domain_id", b.Domain.ID,
		"template_id", b.Template.ID,
		"sent", sent,
		"failed", fails,
		"duration", time.Since(start))
	return results, nil
}

// SendOne resolves and sends a single message without pacing. Used for
// account test sends.
func (d *Dispatcher) SendOne(ctx context.Context, b *Batch, acc *domain.Account, c *domain.Contact) domain.SendResult {
	return d.sendOne(ctx, b, acc, c)
}

func (d *Dispatcher) sendOne(ctx context.Context, b *Batch, acc *domain.Account, c *domain.Contact) domain.SendResult {
	values := b.Layout.Resolve(c, acc)
	msg := channel.Compose(b.Template, acc, c, values)

	messageID, err := d.ch.Send(ctx, b.Domain, msg)
	if err != nil {
		logger.Warn("send failed",
			"domain_id", b.Domain.ID,
			"account_id", acc.ID,
			"contact_id", c.ID,
			"recipient", c.Email,
			"error", err)
		return failed(acc.ID, c.ID, c.Email, err.Error())
	}
	return domain.SendResult{
		AccountID: acc.ID,
		ContactID: c.ID,
		Email:     c.Email,
		Status:    domain.StatusSent,
		MessageID: messageID,
	}
}

func accountUnusable(acc *domain.Account, domainID string) string {
	switch {
	case acc == nil:
		return "account not found"
	case acc.DomainID != domainID:
		return "account does not belong to domain"
	case !acc.Active:
		return "account is inactive"
	}
	return ""
}

func failed(accountID, contactID, email, reason string) domain.SendResult {
	return domain.SendResult{
		AccountID: accountID,
		ContactID: contactID,
		Email:     email,
		Status:    domain.StatusFailed,
		Error:     reason,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
