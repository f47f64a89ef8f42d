// Package places fetches public place reviews from the maps/places API.
package places

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/adapters/upstream"
	"reviews_dashboard/internal/domain"
)

const (
	Name = "google"

	// MaxReviews is the most reviews the provider returns per place.
	MaxReviews = 5
)

var ErrUpstreamStatus = errors.New("places: upstream status")

type Client struct {
	base   string
	key    string
	places PlaceMap
	http   *upstream.Client
}

func New(base, key string, places PlaceMap, h *upstream.Client) *Client {
	if h == nil {
		h = upstream.New(Name, 10*time.Second, 5)
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		key:    strings.TrimSpace(key),
		places: places,
		http:   h,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Configured() bool { return c.key != "" && c.places.Len() > 0 }

func (c *Client) Places() []Place { return c.places.All() }

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name    string        `json:"name"`
		Reviews []placeReview `json:"reviews"`
	} `json:"result"`
}

type placeReview struct {
	AuthorName string  `json:"author_name"`
	Rating     float64 `json:"rating"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"`
	Language   string  `json:"language"`
}

// FetchReviews returns reviews for the scoped listing, or for every mapped
// listing when the scope is empty. A listing without a mapped place has no
// place reviews: the result is empty, not an error.
func (c *Client) FetchReviews(ctx context.Context, scope domain.FetchScope) ([]map[string]any, error) {
	var targets []Place
	if scope.Listing != "" {
		p, ok := c.places.Lookup(scope.Listing)
		if !ok {
			log.Debug().Str("listing", scope.Listing).Msg("no place mapped for listing")
			return []map[string]any{}, nil
		}
		targets = []Place{p}
	} else {
		targets = c.places.All()
	}

	var out []map[string]any
	for _, p := range targets {
		recs, err := c.fetchPlace(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (c *Client) fetchPlace(ctx context.Context, p Place) ([]map[string]any, error) {
	u := c.base + "/details/json?" + url.Values{
		"place_id": {p.PlaceID},
		"fields":   {"name,rating,reviews"},
		"key":      {c.key},
	}.Encode()

	var resp detailsResponse
	err := c.http.Do(ctx, "details", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("places details %s: %w", p.PlaceID, err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("%w: %s %s", ErrUpstreamStatus, resp.Status, resp.ErrorMessage)
	}

	revs := resp.Result.Reviews
	if len(revs) > MaxReviews {
		revs = revs[:MaxReviews]
	}
	out := make([]map[string]any, 0, len(revs))
	for _, r := range revs {
		at := time.Unix(r.Time, 0).UTC()
		out = append(out, map[string]any{
			"type":           "guest-to-host",
			"status":         "published",
			"channel":        "Google",
			"rating":         r.Rating, // 0..5, doubled by the normalizer profile
			"publicReview":   r.Text,
			"guestName":      r.AuthorName,
			"listingName":    p.Listing,
			"submittedAt":    at.Format("2006-01-02 15:04:05"),
			"submittedAtISO": at.Format(time.RFC3339),
			"language":       r.Language,
			"placeId":        p.PlaceID,
		})
	}
	return out, nil
}
