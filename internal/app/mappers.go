package app

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"reviews_dashboard/internal/domain"
)

/********** alias registries (single source of truth) **********/

var reviewAliases = map[string][]string{
	"id":             {"id", "reviewId", "review_id"},
	"type":           {"type", "reviewType", "review_type"},
	"status":         {"status", "state"},
	"channel":        {"channel", "channelName", "source", "platform"},
	"rating":         {"rating", "overallRating", "overall_rating", "starRating", "rating.value"},
	"publicReview":   {"publicReview", "public_review", "text", "comment", "review", "text.text", "originalText.text"},
	"categories":     {"reviewCategory", "reviewCategories", "categories", "categoryRatings", "subRatings"},
	"submittedAt":    {"submittedAt", "submitted_at", "date", "createdAt", "created_at"},
	"submittedAtISO": {"submittedAtISO", "submittedAtIso", "submitted_at_iso", "isoDate", "publishTime"},
	"guestName":      {"guestName", "guest_name", "reviewerName", "authorName", "author_name", "guest.name", "author.name", "authorAttribution.displayName"},
	"listingName":    {"listingName", "listing_name", "propertyName", "property_name", "listing.name", "property.name"},
}

var categoryNameKeys = []string{"category", "name", "key"}
var categoryRatingKeys = []string{"rating", "value", "score"}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the trimmed string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func orDefault(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// collapseSpace trims and folds internal whitespace runs to one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		if f := toFloat(lookupAny(m, k)); f != nil {
			return f
		}
	}
	return nil
}

func toFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

// clampRating clamps the float first so ±Inf and huge values cannot wrap
func clampRating(f float64) int {
	f = math.Max(domain.MinRating, math.Min(domain.MaxRating, f))
	return int(math.Round(f))
}

// scaleRating brings a provider score onto 0..10. A /5 source is doubled.
func scaleRating(f *float64, scale int) *int {
	if f == nil || math.IsNaN(*f) {
		return nil
	}
	v := *f
	if scale == 5 {
		v *= 2
	}
	n := clampRating(v)
	return &n
}

/********** timestamps **********/

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// "YYYY-MM-DD HH:mm:ss" is read as UTC with the space as the separator.
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// deriveTimestamp prefers an explicit ISO alias, then the display string,
// and records EpochSentinel when neither parses.
func deriveTimestamp(m map[string]any, display string) time.Time {
	if iso := firstNonEmptyAlias(m, reviewAliases, "submittedAtISO"); iso != nil {
		if t, ok := parseInstant(*iso); ok {
			return t
		}
	}
	if t, ok := parseInstant(display); ok {
		return t
	}
	return domain.EpochSentinel
}

/********** categories **********/

// mapCategories accepts [{category, rating}] or {name: rating}. Object
// keys are emitted in name order.
func mapCategories(m map[string]any) []domain.CategoryRating {
	out := []domain.CategoryRating{}
	for _, path := range reviewAliases["categories"] {
		switch v := lookupAny(m, path).(type) {
		case []any:
			for _, it := range v {
				obj, ok := it.(map[string]any)
				if !ok {
					continue
				}
				name := ""
				for _, k := range categoryNameKeys {
					if name = lookupStr(obj, k); name != "" {
						break
					}
				}
				if name == "" {
					continue
				}
				out = append(out, domain.CategoryRating{Category: name, Rating: scaleRating(getFloatFlexible(obj, categoryRatingKeys...), 10)})
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				name := strings.TrimSpace(k)
				if name == "" {
					continue
				}
				out = append(out, domain.CategoryRating{Category: name, Rating: scaleRating(toFloat(v[k]), 10)})
			}
		default:
			continue
		}
		if len(out) > 0 {
			return out
		}
	}
	return out
}

/********** review normalizer **********/

// Normalize maps one validated candidate onto the canonical review. Every
// default is applied here, once; the result has no absent fields.
func Normalize(p Profile, c Candidate) domain.Review {
	r := c.Fields

	approved, _ := lookupAny(r, "approved").(bool)

	return domain.Review{
		ID:             c.ID,
		Type:           orDefault(firstNonEmptyAlias(r, reviewAliases, "type"), domain.DefaultType),
		Status:         orDefault(firstNonEmptyAlias(r, reviewAliases, "status"), domain.DefaultStatus),
		Channel:        orDefault(firstNonEmptyAlias(r, reviewAliases, "channel"), p.DefaultChannel),
		Rating:         scaleRating(getFloatFlexible(r, reviewAliases["rating"]...), p.RatingScale),
		PublicReview:   deref(firstNonEmptyAlias(r, reviewAliases, "publicReview")),
		ReviewCategory: mapCategories(r),
		SubmittedAt:    c.SubmittedAt,
		SubmittedAtISO: deriveTimestamp(r, c.SubmittedAt),
		GuestName:      orDefault(ptrCollapsed(firstNonEmptyAlias(r, reviewAliases, "guestName")), domain.DefaultGuest),
		ListingName:    orDefault(ptrCollapsed(firstNonEmptyAlias(r, reviewAliases, "listingName")), domain.DefaultListing),
		Approved:       approved,
	}
}

func ptrCollapsed(p *string) *string {
	if p == nil {
		return nil
	}
	s := collapseSpace(*p)
	return &s
}

// NormalizeBatch runs Normalize over every candidate, keeping order.
func NormalizeBatch(p Profile, cs []Candidate) []domain.Review {
	out := make([]domain.Review, 0, len(cs))
	for _, c := range cs {
		out = append(out, Normalize(p, c))
	}
	return out
}
