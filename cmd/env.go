package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/cache"
	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/ingest"
	"github.com/Nemiok/gde-deshevle/internal/matching"
	"github.com/Nemiok/gde-deshevle/internal/pricestore"
	"github.com/Nemiok/gde-deshevle/internal/resilience"
	"github.com/Nemiok/gde-deshevle/internal/scrape"
	"github.com/Nemiok/gde-deshevle/internal/source"
)

// pipelineEnv holds the initialized pool, cache client, and orchestrator
// shared by the sweep/daemon commands.
type pipelineEnv struct {
	Pool         *pgxpool.Pool
	Redis        *goredis.Client
	Orchestrator *ingest.Orchestrator
	Registry     *source.Registry
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Redis != nil {
		_ = pe.Redis.Close()
	}
	if pe.Pool != nil {
		pe.Pool.Close()
	}
}

// initEnv connects to Postgres and Redis, applies the schema, and wires the
// orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is required (GDE_STORE_DATABASE_URL)")
	}

	pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}

	prices := pricestore.New(pool)
	if err := prices.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// The cache is advisory; a missing Redis degrades to uncached reads.
	var (
		redisClient *goredis.Client
		invalidator ingest.Invalidator
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zap.L().Warn("redis unavailable, cache invalidation disabled", zap.Error(err))
		} else {
			invalidator = cache.NewInvalidator(redisClient)
		}
	}

	client := scrape.NewClient(scrape.Options{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.Scrape.Timeout(),
	})
	registry := source.DefaultRegistry(source.Deps{
		Client: client,
		Pacer: resilience.NewPacer(
			time.Duration(cfg.Scrape.DelayMinMs)*time.Millisecond,
			time.Duration(cfg.Scrape.DelayMaxMs)*time.Millisecond,
		),
		Keywords: cfg.Scrape.Keywords,
		MaxPages: cfg.Scrape.MaxPages,
	})

	orch := ingest.NewOrchestrator(ingest.OrchestratorConfig{
		Pool:        pool,
		Prices:      prices,
		Matcher:     matching.NewMatcher(cfg.Match.Threshold),
		Registry:    registry,
		Invalidator: invalidator,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Scrape.MaxAttempts,
			InitialBackoff: cfg.Scrape.RetryBase(),
		},
		PushBack: cfg.Freshness.PushBack(),
	})

	return &pipelineEnv{
		Pool:         pool,
		Redis:        redisClient,
		Orchestrator: orch,
		Registry:     registry,
	}, nil
}
