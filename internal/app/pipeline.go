package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/adapters/observability"
	"reviews_dashboard/internal/domain"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Source pairs a provider with its profile and the bundled fixture served
// when the provider is unconfigured or failing.
type Source struct {
	Provider domain.ReviewProvider
	Profile  Profile
	Fixture  func() ([]map[string]any, error)
}

// Pipeline turns provider output into a normalized collection:
// fetch (or fixture) -> validate -> normalize -> dedup -> merge.
type Pipeline struct {
	sources  []Source
	cache    domain.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

// NewPipeline keeps the source order; it decides merge precedence.
func NewPipeline(sources []Source, cache domain.Cache, cacheTTL, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Pipeline{sources: sources, cache: cache, cacheTTL: cacheTTL, timeout: timeout}
}

func (p *Pipeline) Providers() []string {
	out := make([]string, 0, len(p.sources))
	for _, s := range p.sources {
		out = append(out, s.Profile.Provider)
	}
	return out
}

// Collect gathers the named providers (all when names is empty) and
// merges them in source order.
func (p *Pipeline) Collect(ctx context.Context, scope domain.FetchScope, names ...string) (domain.Collection, error) {
	selected, err := p.selectSources(names)
	if err != nil {
		return domain.Collection{}, err
	}
	col := domain.Collection{Sources: make(map[string]string, len(selected))}
	seqs := make([][]domain.Review, 0, len(selected))
	for _, src := range selected {
		revs, source, err := p.collectOne(ctx, src, scope)
		if err != nil {
			return domain.Collection{}, err
		}
		col.Sources[src.Profile.Provider] = source
		seqs = append(seqs, revs)
	}
	col.Reviews = Merge(seqs...)
	return col, nil
}

func (p *Pipeline) selectSources(names []string) ([]Source, error) {
	if len(names) == 0 {
		return p.sources, nil
	}
	out := make([]Source, 0, len(names))
	for _, n := range names {
		found := false
		for _, s := range p.sources {
			if strings.EqualFold(s.Profile.Provider, n) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, n)
		}
	}
	return out, nil
}

func cacheKey(provider string, scope domain.FetchScope) string {
	return fmt.Sprintf("reviews:%s:%s", provider, strings.ToLower(scope.Listing))
}

func (p *Pipeline) collectOne(ctx context.Context, src Source, scope domain.FetchScope) ([]domain.Review, string, error) {
	key := cacheKey(src.Profile.Provider, scope)
	if p.cache != nil {
		var cached []domain.Review
		if ok, err := p.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, domain.SourceLive, nil
		}
	}

	raws, source, err := p.fetch(ctx, src, scope)
	if err != nil {
		return nil, "", err
	}
	candidates := ValidateBatch(src.Profile, raws)
	revs := Merge(NormalizeBatch(src.Profile, candidates))

	log.Debug().
		Str("provider", src.Profile.Provider).
		Str("listing", scope.Listing).
		Str("source", source).
		Int("raw", len(raws)).
		Int("valid", len(candidates)).
		Int("normalized", len(revs)).
		Msg("collection built")

	// only live collections are cached
	if source == domain.SourceLive && p.cache != nil && p.cacheTTL > 0 {
		if err := p.cache.Set(ctx, key, revs, int(p.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return revs, source, nil
}

// fetch calls the provider under a bounded timeout and substitutes the
// fixture on any failure. Only a broken fixture is returned as an error.
func (p *Pipeline) fetch(ctx context.Context, src Source, scope domain.FetchScope) ([]map[string]any, string, error) {
	name := src.Profile.Provider
	if src.Provider != nil && src.Provider.Configured() {
		fctx, cancel := context.WithTimeout(ctx, p.timeout)
		raws, err := src.Provider.FetchReviews(fctx, scope)
		cancel()
		if err == nil {
			observability.ObserveProviderFetch(name, domain.SourceLive)
			return raws, domain.SourceLive, nil
		}
		log.Warn().Err(err).Str("provider", name).Str("listing", scope.Listing).Msg("provider fetch failed; serving fixture")
	} else {
		log.Debug().Str("provider", name).Msg("provider not configured; serving fixture")
	}

	observability.ObserveProviderFetch(name, domain.SourceFallback)
	if src.Fixture == nil {
		return nil, domain.SourceFallback, nil
	}
	raws, err := src.Fixture()
	if err != nil {
		return nil, "", fmt.Errorf("load %s fixture: %w", name, err)
	}
	return raws, domain.SourceFallback, nil
}

// Invalidate drops a cached live collection so the next Collect refetches.
func (p *Pipeline) Invalidate(ctx context.Context, provider string, scope domain.FetchScope) {
	if p.cache == nil {
		return
	}
	_ = p.cache.Del(ctx, cacheKey(provider, scope))
}
