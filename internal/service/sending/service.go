package sending

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/dispatch-engine/internal/channel"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/merge"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/service/dispatch"
	"github.com/ignite/dispatch-engine/internal/service/identity"
	"github.com/ignite/dispatch-engine/internal/service/stats"
)

// Directory is the read side the sending service needs beyond dispatch.
type Directory interface {
	dispatch.Directory
	FirstTemplate(ctx context.Context, domainID string) (*domain.Template, error)
	FirstContact(ctx context.Context, domainID string) (*domain.Contact, error)
}

// Recorder applies batch results to stats and history.
type Recorder interface {
	Record(ctx context.Context, ref stats.BatchRef, results []domain.SendResult) (*domain.HistoryRecord, error)
}

// Notifier receives the results of every recorded batch without blocking.
type Notifier interface {
	Notify(ctx context.Context, results []domain.SendResult)
}

// TemplateSource fetches provider-side templates.
type TemplateSource interface {
	FetchTemplate(ctx context.Context, d *domain.Domain, key string) (*channel.ProviderTemplate, error)
}

// Service implements the synchronous send operations.
type Service struct {
	dir        Directory
	dispatcher *dispatch.Dispatcher
	recorder   Recorder
	notifier   Notifier
	templates  TemplateSource
}

// NewService creates a sending service.
func NewService(dir Directory, dispatcher *dispatch.Dispatcher, recorder Recorder) *Service {
	return &Service{dir: dir, dispatcher: dispatcher, recorder: recorder}
}

// SetNotifier sets the external sync notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetTemplateSource enables FetchTemplate.
func (s *Service) SetTemplateSource(t TemplateSource) { s.templates = t }

// ImmediateInput is one immediate batch. An empty DomainID uses the
// active selection.
type ImmediateInput struct {
	DomainID    string              `json:"domainId"`
	TemplateID  string              `json:"templateId"`
	Assignments []domain.Assignment `json:"assignments"`
}

// ImmediateResult is what an immediate send returns.
type ImmediateResult struct {
	HistoryID string              `json:"historyId"`
	Results   []domain.SendResult `json:"results"`
	Sent      int                 `json:"sent"`
	Failed    int                 `json:"failed"`
}

// Immediate validates the batch, sends it and records the outcome. Once
// validation passes the batch runs to completion even if ctx is
// cancelled. A recording failure is returned after the sends happened.
func (s *Service) Immediate(ctx context.Context, in ImmediateInput) (*ImmediateResult, error) {
	domainID := identity.DomainOrSelected(ctx, in.DomainID)

	b, err := s.dispatcher.Load(ctx, domainID, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Validate(ctx, b, in.Assignments); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	results, err := s.dispatcher.Dispatch(ctx, b, in.Assignments, nil)
	if err != nil && len(results) == 0 {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	rec, rerr := s.recorder.Record(ctx, stats.BatchRef{DomainID: domainID, TemplateID: in.TemplateID}, results)
	if rerr != nil {
		return nil, fmt.Errorf("record immediate send: %w", rerr)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, results)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch stopped after %d results: %w", len(results), err)
	}

	sent, failed := domain.Tally(results)
	return &ImmediateResult{HistoryID: rec.ID, Results: results, Sent: sent, Failed: failed}, nil
}

// TestResult is the outcome of an account test send.
type TestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
}

// TestAccount sends the first template of the account's Domain to the
// Domain's first contact. Test sends leave stats and history untouched.
func (s *Service) TestAccount(ctx context.Context, accountID string) (*TestResult, error) {
	acc, err := s.dir.GetAccount(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}

	tpl, err := s.dir.FirstTemplate(ctx, acc.DomainID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoTemplates
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	c, err := s.dir.FirstContact(ctx, acc.DomainID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoContacts
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	b, err := s.dispatcher.Load(ctx, acc.DomainID, tpl.ID)
	if err != nil {
		return nil, err
	}

	res := s.dispatcher.SendOne(ctx, b, acc, c)
	if res.Status != domain.StatusSent {
		return nil, &TestSendError{AccountID: acc.ID, Reason: res.Error}
	}
	logger.Info("test send delivered", "account_id", acc.ID, "recipient", c.Email, "message_id", res.MessageID)
	return &TestResult{
		Success:   true,
		Message:   fmt.Sprintf("Test email sent from %s to %s", acc.Email, c.Email),
		MessageID: res.MessageID,
	}, nil
}

// FetchedTemplate is a provider template with a proposed merge mapping.
type FetchedTemplate struct {
	Name        string                       `json:"name"`
	Subject     string                       `json:"subject"`
	HTMLBody    string                       `json:"htmlBody"`
	MergeFields map[string]domain.MergeField `json:"mergeFields"`
}

// FetchTemplate loads a provider-side template and proposes a merge
// mapping for the placeholders in its body.
func (s *Service) FetchTemplate(ctx context.Context, domainID, key string) (*FetchedTemplate, error) {
	domainID = identity.DomainOrSelected(ctx, domainID)
	if domainID == "" {
		return nil, domain.Invalid("domainId", "required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, domain.Invalid("templateKey", "required")
	}
	if s.templates == nil {
		return nil, errors.New("provider template fetch is not configured")
	}

	d, err := s.dir.GetDomain(ctx, domainID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("domain %s: %w", domainID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", domainID, err)
	}

	pt, err := s.templates.FetchTemplate(ctx, d, key)
	if err != nil {
		return nil, fmt.Errorf("fetch template %s: %w", key, err)
	}
	return &FetchedTemplate{
		Name:        pt.Name,
		Subject:     pt.Subject,
		HTMLBody:    pt.HTMLBody,
		MergeFields: merge.Propose(pt.HTMLBody),
	}, nil
}
