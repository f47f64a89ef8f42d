package app

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"reviews_dashboard/internal/domain"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	SortSubmittedAt = "submittedAt"
	SortRating      = "rating"
)

/********** parameter parsing **********/

// ParseQuery reads query-string parameters. Malformed numbers and dates
// are treated as absent; parsing never fails.
func ParseQuery(v url.Values) domain.ReviewQuery {
	q := domain.ReviewQuery{
		Listing:  collapseSpace(v.Get("listing")),
		Q:        strings.TrimSpace(v.Get("q")),
		Category: strings.TrimSpace(v.Get("category")),
		Types:    splitList(v["type"]),
		Channels: splitList(v["channel"]),
		Sort:     SortSubmittedAt,
		Desc:     true,
		Page:     1,
		Limit:    DefaultLimit,
	}

	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("min"))); err == nil {
		q.Min = &n
	}

	for _, s := range splitList(v["status"]) {
		if ls := strings.ToLower(s); ls == "all" || ls == "any" {
			q.AllStatuses = true
			q.Statuses = nil
			break
		}
		q.Statuses = append(q.Statuses, s)
	}

	for _, k := range []string{"approvedOnly", "approved"} {
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Get(k))); err == nil && b {
			q.ApprovedOnly = true
		}
	}

	if t, ok := parseDay(v.Get("from")); ok {
		q.From = &t
	}
	if t, ok := parseDay(v.Get("to")); ok {
		end := t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		q.To = &end
	}

	switch strings.ToLower(strings.TrimSpace(v.Get("sort"))) {
	case "rating":
		q.Sort = SortRating
	default:
		q.Sort = SortSubmittedAt
	}
	if strings.EqualFold(strings.TrimSpace(v.Get("order")), "asc") {
		q.Desc = false
	}

	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("page"))); err == nil && n >= 1 {
		q.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v.Get("limit"))); err == nil {
		q.Limit = clampLimit(n)
	}
	return q
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// splitList flattens repeated and comma-separated values.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// parseDay reads YYYY-MM-DD (or a full instant, truncated to its day) as UTC midnight.
func parseDay(s string) (time.Time, bool) {
	t, ok := parseInstant(s)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

/********** engine **********/

type matcher struct {
	fold     cases.Caser
	statuses map[string]struct{}
	types    map[string]struct{}
	channels map[string]struct{}
	listing  string
	q        string
	category string
}

func newMatcher(q domain.ReviewQuery) *matcher {
	m := &matcher{fold: cases.Fold()}
	if !q.AllStatuses {
		st := q.Statuses
		if len(st) == 0 {
			st = []string{domain.StatusPublished}
		}
		m.statuses = m.set(st)
	}
	m.types = m.set(q.Types)
	m.channels = m.set(q.Channels)
	m.listing = m.key(q.Listing)
	m.q = m.key(q.Q)
	m.category = m.key(q.Category)
	return m
}

func (m *matcher) key(s string) string { return m.fold.String(strings.TrimSpace(s)) }

func (m *matcher) set(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		out[m.key(v)] = struct{}{}
	}
	return out
}

func (m *matcher) in(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[m.key(v)]
	return ok
}

func (m *matcher) match(r domain.Review, q domain.ReviewQuery) bool {
	if !m.in(m.statuses, r.Status) || !m.in(m.types, r.Type) || !m.in(m.channels, r.Channel) {
		return false
	}
	if q.ApprovedOnly && !r.Approved {
		return false
	}
	if m.listing != "" && m.key(r.ListingName) != m.listing {
		return false
	}
	if m.q != "" {
		hay := m.key(r.GuestName + " " + r.ListingName + " " + r.PublicReview)
		if !strings.Contains(hay, m.q) {
			return false
		}
	}
	if m.category != "" && !m.categoryMatch(r, q.Min) {
		return false
	}
	ms := r.SubmittedAtISO.UnixMilli()
	if q.From != nil && ms < q.From.UnixMilli() {
		return false
	}
	if q.To != nil && ms > q.To.UnixMilli() {
		return false
	}
	return true
}

// categoryMatch requires the named category with a non-null rating,
// at least min when min is given.
func (m *matcher) categoryMatch(r domain.Review, min *int) bool {
	for _, c := range r.ReviewCategory {
		if m.key(c.Category) != m.category || c.Rating == nil {
			continue
		}
		if min == nil || *c.Rating >= *min {
			return true
		}
	}
	return false
}

// ratingKey ranks an absent rating below every present one.
func ratingKey(r domain.Review) int {
	if r.Rating == nil {
		return -1
	}
	return *r.Rating
}

func sortReviews(rs []domain.Review, key string, desc bool) {
	var k func(domain.Review) int64
	if key == SortRating {
		k = func(r domain.Review) int64 { return int64(ratingKey(r)) }
	} else {
		k = func(r domain.Review) int64 { return r.SubmittedAtISO.UnixMilli() }
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if desc {
			return k(rs[i]) > k(rs[j])
		}
		return k(rs[i]) < k(rs[j])
	})
}

// Run filters, sorts and pages a collection. The input is not modified.
func Run(all []domain.Review, q domain.ReviewQuery) domain.ReviewsPage {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	q.Limit = clampLimit(q.Limit)

	m := newMatcher(q)
	matched := make([]domain.Review, 0, len(all))
	for _, r := range all {
		if m.match(r, q) {
			matched = append(matched, r)
		}
	}
	sortReviews(matched, q.Sort, q.Desc)

	page := domain.ReviewsPage{Items: []domain.Review{}, Total: len(matched), Page: q.Page, Limit: q.Limit}
	// compared in pages; (Page-1)*Limit can overflow
	if q.Page-1 >= (len(matched)+q.Limit-1)/q.Limit {
		return page
	}
	start := (q.Page - 1) * q.Limit
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = matched[start:end]
	return page
}

/********** listing summaries **********/

type accum struct {
	sum   decimal.Decimal
	count int
}

func (a *accum) add(v int) {
	a.sum = a.sum.Add(decimal.NewFromInt(int64(v)))
	a.count++
}

func (a *accum) avg() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum.Div(decimal.NewFromInt(int64(a.count))).Round(1).InexactFloat64()
}

// Summarize aggregates published reviews per listing, ordered by listing name.
func Summarize(all []domain.Review) []domain.ListingSummary {
	type group struct {
		s        domain.ListingSummary
		overall  accum
		cats     map[string]*accum
		catOrder []string
		channels map[string]struct{}
	}
	fold := cases.Fold()
	groups := map[string]*group{}
	var order []string

	for _, r := range all {
		if fold.String(r.Status) != domain.StatusPublished {
			continue
		}
		k := fold.String(r.ListingName)
		g, ok := groups[k]
		if !ok {
			g = &group{
				s:        domain.ListingSummary{ListingName: r.ListingName},
				cats:     map[string]*accum{},
				channels: map[string]struct{}{},
			}
			groups[k] = g
			order = append(order, k)
		}
		g.s.ReviewCount++
		if r.Approved {
			g.s.ApprovedCount++
		}
		if r.Rating != nil {
			g.overall.add(*r.Rating)
		}
		for _, c := range r.ReviewCategory {
			if c.Rating == nil {
				continue
			}
			a, ok := g.cats[c.Category]
			if !ok {
				a = &accum{}
				g.cats[c.Category] = a
				g.catOrder = append(g.catOrder, c.Category)
			}
			a.add(*c.Rating)
		}
		g.channels[r.Channel] = struct{}{}
		if r.SubmittedAtISO.After(g.s.LatestReview) {
			g.s.LatestReview = r.SubmittedAtISO
		}
	}

	sort.Strings(order)
	out := make([]domain.ListingSummary, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if g.overall.count > 0 {
			avg := g.overall.avg()
			g.s.AverageRating = &avg
		}
		g.s.Categories = make([]domain.CategoryAverage, 0, len(g.catOrder))
		for _, c := range g.catOrder {
			a := g.cats[c]
			g.s.Categories = append(g.s.Categories, domain.CategoryAverage{Category: c, Average: a.avg(), Count: a.count})
		}
		g.s.Channels = make([]string, 0, len(g.channels))
		for c := range g.channels {
			g.s.Channels = append(g.s.Channels, c)
		}
		sort.Strings(g.s.Channels)
		out = append(out, g.s)
	}
	return out
}
