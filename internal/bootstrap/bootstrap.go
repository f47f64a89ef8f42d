// Package bootstrap assembles providers, fixtures, cache and approval
// store from configuration for the api and ingestor binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/go-sql-driver/mysql"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/adapters/fixture"
	"reviews_dashboard/internal/adapters/hostaway"
	"reviews_dashboard/internal/adapters/memory"
	"reviews_dashboard/internal/adapters/places"
	redisad "reviews_dashboard/internal/adapters/redis"
	"reviews_dashboard/internal/adapters/upstream"
	"reviews_dashboard/internal/app"
	"reviews_dashboard/internal/domain"
	"reviews_dashboard/internal/shared"
	mysqlrepo "reviews_dashboard/internal/storage/mysql"
)

// Deps is everything the services need. Close releases connections.
type Deps struct {
	Pipeline  *app.Pipeline
	Approvals domain.ApprovalStore
	closers   []io.Closer
}

func (d *Deps) Close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func Build(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed; continuing without it")
			_ = rdb.Close()
			rdb = nil
		} else {
			d.closers = append(d.closers, rdb)
		}
	}

	store, err := approvalStore(ctx, cfg, rdb, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Approvals = store

	sources, err := Sources(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	var cache domain.Cache
	if rdb != nil {
		cache = redisad.NewCache(rdb)
	}
	d.Pipeline = app.NewPipeline(sources, cache, cfg.CacheTTL, cfg.ProviderTimeout)
	return d, nil
}

func approvalStore(ctx context.Context, cfg shared.Config, rdb *goredis.Client, d *Deps) (domain.ApprovalStore, error) {
	switch cfg.ApprovalBackend {
	case shared.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		d.closers = append(d.closers, db)
		if _, err := mysqlrepo.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("approvals stored in mysql")
		return mysqlrepo.New(db), nil
	case shared.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("APPROVAL_BACKEND=redis needs a reachable REDIS_ADDR")
		}
		log.Info().Msg("approvals stored in redis")
		return redisad.NewApprovalStore(rdb), nil
	default:
		log.Info().Msg("approvals stored in memory")
		return memory.NewApprovalStore(), nil
	}
}

// Sources lists providers in merge precedence order: hostaway, then google.
func Sources(cfg shared.Config) ([]app.Source, error) {
	pm, err := places.LoadPlaceMap(cfg.PlaceMapPath)
	if err != nil {
		return nil, err
	}
	ha := hostaway.New(cfg.HostawayBase, cfg.HostawayAccount, cfg.HostawayKey,
		hostaway.WithPageSize(cfg.PageSize),
		hostaway.WithHTTP(upstream.New(hostaway.Name, cfg.ProviderTimeout, cfg.ProviderRPS)),
	)
	gp := places.New(cfg.PlacesBase, cfg.PlacesKey, pm, upstream.New(places.Name, cfg.ProviderTimeout, cfg.ProviderRPS))

	log.Info().
		Bool("hostaway_configured", ha.Configured()).
		Bool("google_configured", gp.Configured()).
		Int("places", pm.Len()).
		Msg("providers ready")

	return []app.Source{
		{Provider: ha, Profile: app.HostawayProfile, Fixture: fixture.Hostaway},
		{Provider: gp, Profile: app.GoogleProfile, Fixture: fixture.Google},
	}, nil
}
