package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviews_dashboard/internal/adapters/fixture"
	"reviews_dashboard/internal/adapters/memory"
	"reviews_dashboard/internal/adapters/places"
	"reviews_dashboard/internal/app"
	"reviews_dashboard/internal/domain"
)

// ---- fakes ----

type fakeProvider struct {
	name       string
	configured bool
	recs       []map[string]any
	err        error

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }
func (f *fakeProvider) FetchReviews(ctx context.Context, _ domain.FetchScope) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.recs, f.err
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCache round-trips through JSON like the redis cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type brokenStore struct{}

func (brokenStore) GetApproval(context.Context, domain.ReviewID) (bool, error) {
	return false, errors.New("store down")
}
func (brokenStore) SetApproval(context.Context, domain.ReviewID, bool) error {
	return errors.New("store down")
}
func (brokenStore) ListApprovals(context.Context) (map[domain.ReviewID]bool, error) {
	return nil, errors.New("store down")
}

func liveRecs() []map[string]any {
	return []map[string]any{
		{"id": float64(1), "submittedAt": "2024-03-01 10:00:00", "rating": float64(9), "listingName": "Studio A", "approved": true},
		{"id": float64(2), "submittedAt": "2024-03-02 10:00:00", "rating": float64(6), "listingName": "Studio A"},
		{"id": float64(2), "submittedAt": "2024-03-02 10:00:00", "rating": float64(1), "listingName": "Studio A"},
		{"id": "bad", "submittedAt": "2024-03-02 10:00:00"},
	}
}

func fixtureRecs() ([]map[string]any, error) {
	return []map[string]any{
		{"id": float64(900), "submittedAt": "2023-01-01 00:00:00", "listingName": "Studio A"},
	}, nil
}

func hostawaySource(p *fakeProvider) app.Source {
	return app.Source{Provider: p, Profile: app.HostawayProfile, Fixture: fixtureRecs}
}

// ---- pipeline ----

func TestCollect_LiveProviderIsValidatedNormalizedAndDeduped(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	p := app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second)

	col, err := p.Collect(context.Background(), domain.FetchScope{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLive, col.Sources["hostaway"])
	require.Len(t, col.Reviews, 2)
	assert.Equal(t, 6, *col.Reviews[1].Rating, "first duplicate wins")
}

func TestCollect_FailingProviderFallsBackToFixture(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: true, err: errors.New("502 from upstream")}
	p := app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second)

	col, err := p.Collect(context.Background(), domain.FetchScope{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, col.Sources["hostaway"])
	require.Len(t, col.Reviews, 1)
	assert.Equal(t, "900", col.Reviews[0].ID.String())
	assert.Equal(t, 1, prov.Calls())
}

func TestCollect_UnconfiguredProviderIsNeverCalled(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: false, recs: liveRecs()}
	p := app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second)

	col, err := p.Collect(context.Background(), domain.FetchScope{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, col.Sources["hostaway"])
	assert.Zero(t, prov.Calls())
}

func TestCollect_BrokenFixtureIsAnError(t *testing.T) {
	src := app.Source{
		Provider: &fakeProvider{name: "hostaway"},
		Profile:  app.HostawayProfile,
		Fixture:  func() ([]map[string]any, error) { return nil, errors.New("corrupt") },
	}
	_, err := app.NewPipeline([]app.Source{src}, nil, 0, 0).Collect(context.Background(), domain.FetchScope{})
	assert.Error(t, err)
}

func TestCollect_UnknownProvider(t *testing.T) {
	p := app.NewPipeline(nil, nil, 0, 0)
	_, err := p.Collect(context.Background(), domain.FetchScope{}, "tripadvisor")
	assert.ErrorIs(t, err, app.ErrUnknownProvider)
}

func TestCollect_OnlyLiveResultsAreCached(t *testing.T) {
	cache := &fakeCache{}
	live := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	p := app.NewPipeline([]app.Source{hostawaySource(live)}, cache, time.Minute, time.Second)
	ctx := context.Background()

	first, err := p.Collect(ctx, domain.FetchScope{})
	require.NoError(t, err)
	second, err := p.Collect(ctx, domain.FetchScope{})
	require.NoError(t, err)
	assert.Equal(t, 1, live.Calls())
	assert.Equal(t, domain.SourceLive, second.Sources["hostaway"])
	assert.Equal(t, len(first.Reviews), len(second.Reviews))
	assert.Equal(t, first.Reviews[0].ID, second.Reviews[0].ID)

	failing := &fakeProvider{name: "hostaway", configured: true, err: errors.New("down")}
	p = app.NewPipeline([]app.Source{hostawaySource(failing)}, &fakeCache{}, time.Minute, time.Second)
	_, _ = p.Collect(ctx, domain.FetchScope{})
	_, _ = p.Collect(ctx, domain.FetchScope{})
	assert.Equal(t, 2, failing.Calls(), "fallback collections must not be cached")
}

func TestCollect_SlowProviderIsCutOff(t *testing.T) {
	slow := &slowProvider{}
	src := app.Source{Provider: slow, Profile: app.HostawayProfile, Fixture: fixtureRecs}
	p := app.NewPipeline([]app.Source{src}, nil, 0, 50*time.Millisecond)

	start := time.Now()
	col, err := p.Collect(context.Background(), domain.FetchScope{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.SourceFallback, col.Sources["hostaway"])
}

type slowProvider struct{}

func (slowProvider) Name() string     { return "hostaway" }
func (slowProvider) Configured() bool { return true }
func (slowProvider) FetchReviews(ctx context.Context, _ domain.FetchScope) ([]map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCollect_EarlierSourceWinsIDCollisions(t *testing.T) {
	a := &fakeProvider{name: "hostaway", configured: true, recs: []map[string]any{
		{"id": float64(5), "submittedAt": "2024-03-01", "guestName": "From Hostaway"},
	}}
	b := &fakeProvider{name: "google", configured: true, recs: []map[string]any{
		{"reviewId": "5", "submittedAt": "2024-03-01", "authorName": "From Google"},
		{"reviewId": "g-1", "submittedAt": "2024-03-01"},
	}}
	p := app.NewPipeline([]app.Source{
		hostawaySource(a),
		{Provider: b, Profile: app.GoogleProfile},
	}, nil, 0, time.Second)

	col, err := p.Collect(context.Background(), domain.FetchScope{})
	require.NoError(t, err)
	require.Len(t, col.Reviews, 2)
	assert.Equal(t, "From Hostaway", col.Reviews[0].GuestName)
	assert.Equal(t, map[string]string{"hostaway": "live", "google": "live"}, col.Sources)
}

func TestCollect_BundledFixtures(t *testing.T) {
	p := app.NewPipeline([]app.Source{
		{Provider: &fakeProvider{name: "hostaway"}, Profile: app.HostawayProfile, Fixture: fixture.Hostaway},
		{Provider: &fakeProvider{name: "google"}, Profile: app.GoogleProfile, Fixture: fixture.Google},
	}, nil, 0, 0)

	col, err := p.Collect(context.Background(), domain.FetchScope{}, "hostaway")
	require.NoError(t, err)
	assert.Len(t, col.Reviews, 9)

	page := app.Run(col.Reviews, app.ParseQuery(url.Values{}))
	assert.Equal(t, 8, page.Total)

	col, err = p.Collect(context.Background(), domain.FetchScope{}, "google")
	require.NoError(t, err)
	require.Len(t, col.Reviews, 4)
	for _, r := range col.Reviews {
		require.NotNil(t, r.Rating)
		assert.Equal(t, "Google", r.Channel)
	}
}

func TestCollect_UnmappedListingIsLiveAndEmpty(t *testing.T) {
	pm, err := places.ParsePlaceMap([]byte("places:\n  - listing: Other\n    placeId: ChIJother\n"))
	require.NoError(t, err)
	google := places.New("http://127.0.0.1:1", "key", pm, nil)
	require.True(t, google.Configured())

	p := app.NewPipeline([]app.Source{
		{Provider: google, Profile: app.GoogleProfile, Fixture: fixture.Google},
	}, nil, 0, time.Second)

	col, err := p.Collect(context.Background(), domain.FetchScope{Listing: "1B Camden Lock Studio"})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLive, col.Sources["google"])
	assert.Empty(t, col.Reviews)
}

// ---- services ----

func TestListReviews_ApprovalIsUnionOfRecordAndStore(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	store := memory.NewApprovalStore()
	require.NoError(t, store.SetApproval(context.Background(), "2", true))

	q := app.NewQueryService(app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second), store)
	res, err := q.ListReviews(context.Background(), app.ParseQuery(url.Values{"approvedOnly": {"1"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(res.Page))

	// a false in the store does not revoke the record's own flag
	require.NoError(t, store.SetApproval(context.Background(), "1", false))
	res, err = q.ListReviews(context.Background(), app.ParseQuery(url.Values{"approvedOnly": {"1"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(res.Page))
}

func TestListReviews_StoreOutageKeepsRecordFlags(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	q := app.NewQueryService(app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second), brokenStore{})

	res, err := q.ListReviews(context.Background(), app.ParseQuery(url.Values{"approvedOnly": {"true"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(res.Page))
}

func TestPublicReviews_ForcesApprovedAndPublished(t *testing.T) {
	recs := append(liveRecs(), map[string]any{
		"id": float64(3), "submittedAt": "2024-03-03", "listingName": "Studio A", "status": "awaiting", "approved": true,
	}, map[string]any{
		"id": float64(4), "submittedAt": "2024-03-04", "listingName": "Loft B", "approved": true,
	})
	prov := &fakeProvider{name: "hostaway", configured: true, recs: recs}
	q := app.NewQueryService(app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second), memory.NewApprovalStore())

	res, err := q.PublicReviews(context.Background(), "  studio   a ", app.ParseQuery(url.Values{"status": {"all"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(res.Page))
	assert.Equal(t, "live", app.SourceHeader(res.Sources))
}

func TestListingSummaries(t *testing.T) {
	prov := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	q := app.NewQueryService(app.NewPipeline([]app.Source{hostawaySource(prov)}, nil, 0, time.Second), memory.NewApprovalStore())

	sums, sources, err := q.ListingSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].ReviewCount)
	assert.Equal(t, 1, sums[0].ApprovedCount)
	assert.Equal(t, domain.SourceLive, sources["hostaway"])
}

func TestSourceHeader(t *testing.T) {
	assert.Equal(t, "fallback", app.SourceHeader(map[string]string{"google": "fallback"}))
	assert.Equal(t, "google=fallback,hostaway=live", app.SourceHeader(map[string]string{"hostaway": "live", "google": "fallback"}))
}

func TestModeration(t *testing.T) {
	store := memory.NewApprovalStore()
	m := app.NewModerationService(store)
	ctx := context.Background()

	assert.ErrorIs(t, m.SetApproval(ctx, "   ", true), app.ErrInvalidID)
	require.NoError(t, m.SetApproval(ctx, " 7453 ", true))

	ok, err := m.Approval(ctx, "7453")
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := m.Approvals(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.ReviewID]bool{"7453": true}, all)

	assert.Error(t, app.NewModerationService(brokenStore{}).SetApproval(ctx, "1", true))
	_, err = app.NewModerationService(brokenStore{}).Approval(ctx, "1")
	assert.Error(t, err)
	_, err = m.Approval(ctx, "")
	assert.ErrorIs(t, err, app.ErrInvalidID)
}

func TestPrefetch_RefreshesCachedCollection(t *testing.T) {
	cache := &fakeCache{}
	prov := &fakeProvider{name: "hostaway", configured: true, recs: liveRecs()}
	p := app.NewPipeline([]app.Source{hostawaySource(prov)}, cache, time.Minute, time.Second)
	ing := app.NewIngestionService(p)
	ctx := context.Background()

	_, err := p.Collect(ctx, domain.FetchScope{})
	require.NoError(t, err)

	rep, err := ing.Prefetch(ctx, "HostAway", domain.FetchScope{})
	require.NoError(t, err)
	assert.Equal(t, 2, prov.Calls(), "cached copy must be dropped")
	assert.Equal(t, "hostaway", rep.Provider)
	assert.Equal(t, domain.SourceLive, rep.Source)
	assert.Len(t, rep.Reviews, 2)

	_, err = ing.Prefetch(ctx, "nope", domain.FetchScope{})
	assert.ErrorIs(t, err, app.ErrUnknownProvider)
}
