package app

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviews_dashboard/internal/domain"
)

func normalizeOne(t *testing.T, p Profile, raw map[string]any) domain.Review {
	t.Helper()
	cs := ValidateBatch(p, []map[string]any{raw})
	require.Len(t, cs, 1, "record must validate")
	return Normalize(p, cs[0])
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	r := normalizeOne(t, HostawayProfile, map[string]any{"id": float64(1), "submittedAt": "2024-03-05 10:15:00"})

	assert.Equal(t, domain.DefaultType, r.Type)
	assert.Equal(t, domain.DefaultStatus, r.Status)
	assert.Equal(t, "Hostaway", r.Channel)
	assert.Equal(t, domain.DefaultGuest, r.GuestName)
	assert.Equal(t, domain.DefaultListing, r.ListingName)
	assert.Nil(t, r.Rating)
	assert.NotNil(t, r.ReviewCategory)
	assert.Empty(t, r.ReviewCategory)
	assert.Equal(t, "", r.PublicReview)
	assert.False(t, r.Approved)
}

func TestNormalize_ClampsAndRoundsRatings(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{float64(15), 10},
		{float64(-3), 0},
		{"8,4", 8},
		{float64(7.5), 8},
		{float64(1e20), 10},
		{math.Inf(1), 10},
		{math.Inf(-1), 0},
		{"Infinity", 10},
	}
	for _, tc := range cases {
		r := normalizeOne(t, HostawayProfile, map[string]any{"id": float64(1), "submittedAt": "2024-03-05", "rating": tc.in})
		require.NotNil(t, r.Rating, "input %v", tc.in)
		assert.Equal(t, tc.want, *r.Rating, "input %v", tc.in)
	}
}

func TestNormalize_DoublesFivePointScale(t *testing.T) {
	for in, want := range map[float64]int{4.5: 9, 3.5: 7, 5: 10, 0.2: 0} {
		r := normalizeOne(t, GoogleProfile, map[string]any{"reviewId": "g", "submittedAt": "2024-03-05", "rating": in})
		require.NotNil(t, r.Rating)
		assert.Equal(t, want, *r.Rating, "input %v", in)
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	r := normalizeOne(t, HostawayProfile, map[string]any{"id": float64(1), "submittedAt": "2024-03-05 10:15:00"})
	assert.Equal(t, "2024-03-05 10:15:00", r.SubmittedAt)
	assert.True(t, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC).Equal(r.SubmittedAtISO), "got %s", r.SubmittedAtISO)

	r = normalizeOne(t, HostawayProfile, map[string]any{"id": float64(1), "submittedAt": "sometime last spring"})
	assert.True(t, domain.EpochSentinel.Equal(r.SubmittedAtISO), "got %s", r.SubmittedAtISO)

	r = normalizeOne(t, HostawayProfile, map[string]any{
		"id":             float64(1),
		"submittedAt":    "2024-03-05 10:15:00",
		"submittedAtISO": "2024-03-05T11:00:00+01:00",
	})
	assert.True(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC).Equal(r.SubmittedAtISO), "got %s", r.SubmittedAtISO)
}

func TestNormalize_AliasesAndNestedPaths(t *testing.T) {
	r := normalizeOne(t, GoogleProfile, map[string]any{
		"reviewId":    "g-9",
		"created_at":  "2024-03-05 10:15:00",
		"author":      map[string]any{"name": "  Jo   Doe "},
		"property":    map[string]any{"name": "1B  Camden Lock Studio"},
		"text":        map[string]any{"text": "Great stay"},
		"platform":    "Google Maps",
		"reviewType":  "guest-to-host",
		"approved":    "true",
		"starRating":  "4",
		"unknownJunk": 1,
	})

	assert.Equal(t, "g-9", r.ID.String())
	assert.Equal(t, "Jo Doe", r.GuestName)
	assert.Equal(t, "1B Camden Lock Studio", r.ListingName)
	assert.Equal(t, "Great stay", r.PublicReview)
	assert.Equal(t, "Google Maps", r.Channel)
	require.NotNil(t, r.Rating)
	assert.Equal(t, 8, *r.Rating)
	assert.False(t, r.Approved, "only a real boolean marks a record approved")
}

func TestNormalize_CategoryShapes(t *testing.T) {
	arr := normalizeOne(t, HostawayProfile, map[string]any{
		"id": float64(1), "submittedAt": "2024-03-05",
		"reviewCategory": []any{
			map[string]any{"category": "cleanliness", "rating": float64(12)},
			map[string]any{"name": "value", "score": nil},
			map[string]any{"rating": float64(5)},
			"junk",
		},
	})
	require.Len(t, arr.ReviewCategory, 2)
	assert.Equal(t, "cleanliness", arr.ReviewCategory[0].Category)
	assert.Equal(t, 10, *arr.ReviewCategory[0].Rating)
	assert.Equal(t, "value", arr.ReviewCategory[1].Category)
	assert.Nil(t, arr.ReviewCategory[1].Rating)

	obj := normalizeOne(t, HostawayProfile, map[string]any{
		"id": float64(1), "submittedAt": "2024-03-05",
		"categories": map[string]any{"value": float64(8), "cleanliness": float64(9)},
	})
	require.Len(t, obj.ReviewCategory, 2)
	assert.Equal(t, "cleanliness", obj.ReviewCategory[0].Category)
	assert.Equal(t, "value", obj.ReviewCategory[1].Category)
	assert.Equal(t, 8, *obj.ReviewCategory[1].Rating)
}

func TestMerge_FirstOccurrenceWinsAndIsIdempotent(t *testing.T) {
	a := []domain.Review{{ID: "1", GuestName: "A"}, {ID: "2"}}
	b := []domain.Review{{ID: "1", GuestName: "B"}, {ID: "3"}, {ID: "2"}}

	got := Merge(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].GuestName)
	assert.Equal(t, []domain.ReviewID{"1", "2", "3"}, []domain.ReviewID{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, got, Merge(got))
	assert.Empty(t, Merge())
}
