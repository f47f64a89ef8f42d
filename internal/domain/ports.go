package domain

import (
	"context"
	"time"
)

// Provenance of a collection: fetched live or substituted from the fixture.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// FetchScope narrows a provider fetch. Listing is only honoured by
// providers keyed per listing (places).
type FetchScope struct {
	Listing string
}

// ReviewProvider fetches one page of raw upstream records.
type ReviewProvider interface {
	Name() string
	Configured() bool
	FetchReviews(ctx context.Context, scope FetchScope) ([]map[string]any, error)
}

// ApprovalStore is the moderation collaborator, keyed by review id.
type ApprovalStore interface {
	GetApproval(ctx context.Context, id ReviewID) (bool, error)
	SetApproval(ctx context.Context, id ReviewID, approved bool) error
	ListApprovals(ctx context.Context) (map[ReviewID]bool, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Collection is a normalized, deduplicated provider output plus provenance.
type Collection struct {
	Reviews []Review
	Sources map[string]string // provider -> live|fallback
}

// Read models & queries
type ReviewQuery struct {
	Listing      string
	Q            string
	Category     string
	Min          *int
	Types        []string
	Channels     []string
	Statuses     []string // empty means published only
	AllStatuses  bool
	ApprovedOnly bool
	From, To     *time.Time
	Sort         string // submittedAt|rating
	Desc         bool
	Page         int
	Limit        int
}

type ReviewsPage struct {
	Items []Review `json:"result"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

type CategoryAverage struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

type ListingSummary struct {
	ListingName   string            `json:"listingName"`
	ReviewCount   int               `json:"reviewCount"`
	ApprovedCount int               `json:"approvedCount"`
	AverageRating *float64          `json:"averageRating"`
	Categories    []CategoryAverage `json:"categories"`
	Channels      []string          `json:"channels"`
	LatestReview  time.Time         `json:"latestReview"`
}
