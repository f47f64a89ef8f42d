package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reviews_dashboard/internal/domain"
)

var ErrInvalidID = errors.New("invalid review id")

type ModerationService struct {
	approvals domain.ApprovalStore
}

func NewModerationService(a domain.ApprovalStore) *ModerationService {
	return &ModerationService{approvals: a}
}

func (s *ModerationService) SetApproval(ctx context.Context, id domain.ReviewID, approved bool) error {
	id, err := cleanID(id)
	if err != nil {
		return err
	}
	if err := s.approvals.SetApproval(ctx, id, approved); err != nil {
		return fmt.Errorf("set approval %s: %w", id, err)
	}
	return nil
}

// Approval reports the stored moderation decision only; a record's own
// approved flag is not consulted.
func (s *ModerationService) Approval(ctx context.Context, id domain.ReviewID) (bool, error) {
	id, err := cleanID(id)
	if err != nil {
		return false, err
	}
	ok, err := s.approvals.GetApproval(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get approval %s: %w", id, err)
	}
	return ok, nil
}

func cleanID(id domain.ReviewID) (domain.ReviewID, error) {
	id = domain.ReviewID(strings.TrimSpace(id.String()))
	if id == "" {
		return "", ErrInvalidID
	}
	return id, nil
}

func (s *ModerationService) Approvals(ctx context.Context) (map[domain.ReviewID]bool, error) {
	return s.approvals.ListApprovals(ctx)
}

// IngestionService refreshes provider collections ahead of user traffic.
type IngestionService struct {
	pipeline *Pipeline
}

func NewIngestionService(p *Pipeline) *IngestionService {
	return &IngestionService{pipeline: p}
}

type PrefetchReport struct {
	Provider string
	Listing  string
	Source   string
	Reviews  []domain.Review
}

// Prefetch drops any cached copy and rebuilds the collection, which
// re-caches it when the provider answered live. provider matches
// case-insensitively; the report carries the canonical name.
func (s *IngestionService) Prefetch(ctx context.Context, provider string, scope domain.FetchScope) (PrefetchReport, error) {
	srcs, err := s.pipeline.selectSources([]string{provider})
	if err != nil {
		return PrefetchReport{}, err
	}
	provider = srcs[0].Profile.Provider

	s.pipeline.Invalidate(ctx, provider, scope)
	col, err := s.pipeline.Collect(ctx, scope, provider)
	if err != nil {
		return PrefetchReport{}, err
	}
	return PrefetchReport{
		Provider: provider,
		Listing:  scope.Listing,
		Source:   col.Sources[provider],
		Reviews:  col.Reviews,
	}, nil
}
