package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Defaults applied by the normalizer when a field is absent upstream.
const (
	DefaultType    = "guest-to-host"
	DefaultStatus  = "published"
	DefaultGuest   = "Guest"
	DefaultListing = "Unknown listing"

	StatusPublished = "published"

	MinRating = 0
	MaxRating = 10
)

// EpochSentinel is recorded when a provider timestamp cannot be parsed.
var EpochSentinel = time.Unix(0, 0).UTC()

// ReviewID is a provider id kept in string form. Numeric ids are emitted
// as JSON numbers so clients see the upstream shape.
type ReviewID string

func (id ReviewID) String() string { return string(id) }

// IsNumeric reports whether id is an integer in canonical decimal form.
func (id ReviewID) IsNumeric() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id ReviewID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ReviewID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ReviewID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ReviewID(n.String())
	return nil
}

type CategoryRating struct {
	Category string `json:"category"`
	Rating   *int   `json:"rating"`
}

// Review is the canonical shape every provider record is normalized into.
// SubmittedAt keeps the provider's display string; SubmittedAtISO is the
// parsed instant and always agrees with it (or is EpochSentinel).
type Review struct {
	ID             ReviewID         `json:"id"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	Channel        string           `json:"channel"`
	Rating         *int             `json:"rating"`
	PublicReview   string           `json:"publicReview"`
	ReviewCategory []CategoryRating `json:"reviewCategory"`
	SubmittedAt    string           `json:"submittedAt"`
	SubmittedAtISO time.Time        `json:"submittedAtISO"`
	GuestName      string           `json:"guestName"`
	ListingName    string           `json:"listingName"`
	Approved       bool             `json:"approved"`
}

// WithApproved returns a copy carrying the given approval flag.
func (r Review) WithApproved(v bool) Review {
	r.Approved = v
	if len(r.ReviewCategory) > 0 {
		r.ReviewCategory = append([]CategoryRating(nil), r.ReviewCategory...)
	}
	return r
}
