package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Service implements identity selection and settings.
type Service struct {
	repo Repository
}

// NewService creates an identity service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (*domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// Selection returns the active domain selection.
func (s *Service) Selection(ctx context.Context) (Selection, error) {
	st, err := s.repo.GetSettings(ctx)
	if err != nil {
		return Selection{}, fmt.Errorf("load settings: %w", err)
	}
	return Selection{DomainID: st.ActiveDomainID}, nil
}

// AutoProcessQueue reports whether the queue processor should run.
func (s *Service) AutoProcessQueue(ctx context.Context) (bool, error) {
	st, err := s.repo.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	return st.AutoProcessQueue, nil
}

// UpdateSettings stores the auto-process flag and, when the active domain
// differs from the stored one, activates it.
func (s *Service) UpdateSettings(ctx context.Context, in domain.Settings) (*domain.Settings, error) {
	current, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if in.ActiveDomainID != "" && in.ActiveDomainID != current.ActiveDomainID {
		if _, err := s.ActivateDomain(ctx, in.ActiveDomainID); err != nil {
			return nil, err
		}
	}
	if in.AutoProcessQueue != current.AutoProcessQueue {
		if err := s.repo.SetAutoProcess(ctx, in.AutoProcessQueue); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
		logger.Info("queue auto-process changed", "enabled", in.AutoProcessQueue)
	}
	return s.repo.GetSettings(ctx)
}

// ActivateDomain makes id the single active Domain.
func (s *Service) ActivateDomain(ctx context.Context, id string) (*domain.Domain, error) {
	if id == "" {
		return nil, domain.Invalid("domainId", "required")
	}
	d, err := s.repo.ActivateDomain(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("activate domain %s: %w", id, err)
	}
	logger.Info("domain activated", "domain_id", id)
	return d, nil
}

// ToggleAccount flips an Account between usable and unusable for sends.
func (s *Service) ToggleAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.repo.ToggleAccount(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("toggle account %s: %w", id, err)
	}
	logger.Info("account toggled", "account_id", id, "active", a.Active)
	return a, nil
}
