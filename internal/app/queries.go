package app

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/domain"
)

type QueryService struct {
	pipeline  *Pipeline
	approvals domain.ApprovalStore
}

func NewQueryService(p *Pipeline, a domain.ApprovalStore) *QueryService {
	return &QueryService{pipeline: p, approvals: a}
}

// Result is one query answer plus the provenance of each provider used.
type Result struct {
	Page    domain.ReviewsPage
	Sources map[string]string
}

// ListReviews answers q over the named providers (all when none given).
func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewQuery, providers ...string) (Result, error) {
	col, err := s.collection(ctx, domain.FetchScope{Listing: q.Listing}, providers...)
	if err != nil {
		return Result{}, err
	}
	return Result{Page: Run(col.Reviews, q), Sources: col.Sources}, nil
}

// PublicReviews is the property page view: published, approved, one listing.
func (s *QueryService) PublicReviews(ctx context.Context, listing string, q domain.ReviewQuery) (Result, error) {
	q.Listing = collapseSpace(listing)
	q.ApprovedOnly = true
	q.AllStatuses = false
	q.Statuses = nil
	return s.ListReviews(ctx, q)
}

func (s *QueryService) ListingSummaries(ctx context.Context) ([]domain.ListingSummary, map[string]string, error) {
	col, err := s.collection(ctx, domain.FetchScope{})
	if err != nil {
		return nil, nil, err
	}
	return Summarize(col.Reviews), col.Sources, nil
}

func (s *QueryService) collection(ctx context.Context, scope domain.FetchScope, providers ...string) (domain.Collection, error) {
	col, err := s.pipeline.Collect(ctx, scope, providers...)
	if err != nil {
		return domain.Collection{}, err
	}
	col.Reviews = s.overlay(ctx, col.Reviews)
	return col, nil
}

// overlay marks a review approved when either the record or the store
// says so. A store outage leaves the records' own flags in place.
func (s *QueryService) overlay(ctx context.Context, revs []domain.Review) []domain.Review {
	if s.approvals == nil {
		return revs
	}
	m, err := s.approvals.ListApprovals(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("approval store unavailable; using record flags")
		return revs
	}
	if len(m) == 0 {
		return revs
	}
	out := make([]domain.Review, len(revs))
	for i, r := range revs {
		if !r.Approved && m[r.ID] {
			r = r.WithApproved(true)
		}
		out[i] = r
	}
	return out
}

// SourceHeader renders provenance as "live"/"fallback" for one provider
// or "a=live,b=fallback" for several.
func SourceHeader(sources map[string]string) string {
	if len(sources) == 1 {
		for _, v := range sources {
			return v
		}
	}
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+sources[k])
	}
	return strings.Join(parts, ",")
}
