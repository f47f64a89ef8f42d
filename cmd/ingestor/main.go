package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviews_dashboard/internal/adapters/observability"
	"reviews_dashboard/internal/app"
	"reviews_dashboard/internal/bootstrap"
	"reviews_dashboard/internal/domain"
	"reviews_dashboard/internal/shared"
)

type options struct {
	Providers []string `long:"provider" short:"p" description:"provider to refresh (repeatable; default all)"`
	Listings  []string `long:"listing" short:"l" description:"listing scope (repeatable; default whole account)"`
	Workers   int      `long:"workers" short:"w" default:"4" description:"concurrent prefetches"`
	Dump      string   `long:"dump" description:"write the refreshed reviews as JSON to this file"`
}

func main() { os.Exit(run()) }

func run() int {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	cfg.LogWarnings()

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("wiring failed")
		return 1
	}
	defer deps.Close()

	providers := opts.Providers
	if len(providers) == 0 {
		providers = deps.Pipeline.Providers()
	}
	scopes := []domain.FetchScope{{}}
	if len(opts.Listings) > 0 {
		scopes = scopes[:0]
		for _, l := range opts.Listings {
			scopes = append(scopes, domain.FetchScope{Listing: strings.TrimSpace(l)})
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	log.Info().
		Strs("providers", providers).
		Int("scopes", len(scopes)).
		Int("workers", opts.Workers).
		Msg("ingestor starting")

	ing := app.NewIngestionService(deps.Pipeline)
	sem := semaphore.NewWeighted(int64(opts.Workers))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []app.PrefetchReport
		failed  int
	)

	for _, p := range providers {
		for _, sc := range scopes {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Warn().Err(err).Msg("ingestion interrupted")
				break
			}
			wg.Add(1)
			go func(provider string, scope domain.FetchScope) {
				defer wg.Done()
				defer sem.Release(1)

				rep, err := ing.Prefetch(ctx, provider, scope)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					log.Warn().Err(err).Str("provider", provider).Str("listing", scope.Listing).Msg("prefetch failed")
					return
				}
				reports = append(reports, rep)
				log.Info().
					Str("provider", provider).
					Str("listing", scope.Listing).
					Str("source", rep.Source).
					Int("reviews", len(rep.Reviews)).
					Msg("prefetch ok")
			}(p, sc)
		}
	}
	wg.Wait()

	if opts.Dump != "" {
		if err := dump(opts.Dump, reports); err != nil {
			log.Error().Err(err).Str("path", opts.Dump).Msg("dump failed")
			failed++
		}
	}

	log.Info().Int("ok", len(reports)).Int("failed", failed).Msg("ingestion completed")
	if failed > 0 {
		return 1
	}
	return 0
}

func dump(path string, reports []app.PrefetchReport) error {
	all := make([][]domain.Review, 0, len(reports))
	for _, r := range reports {
		all = append(all, r.Reviews)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(app.Merge(all...)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
