// Package ingest orchestrates store runs: fetch listings through the
// resilience wrapper, match them against the canonical catalog, and persist
// price snapshots transactionally.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/catalog"
	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/matching"
	"github.com/Nemiok/gde-deshevle/internal/model"
	"github.com/Nemiok/gde-deshevle/internal/pricestore"
	"github.com/Nemiok/gde-deshevle/internal/resilience"
	"github.com/Nemiok/gde-deshevle/internal/source"
)

// Invalidator drops cached price reads for a store after its run commits.
// Invalidation is best-effort: failures are logged, never fail the run.
type Invalidator interface {
	InvalidateStore(ctx context.Context, storeID int64) (int64, error)
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Pool     db.Pool
	Prices   *pricestore.Store
	Matcher  *matching.Matcher
	Registry *source.Registry

	// Invalidator may be nil when no cache is configured.
	Invalidator Invalidator

	// Retry applies to each adapter's top-level fetch only.
	Retry resilience.RetryConfig

	// PushBack is how far scraped_at is pushed into the past before a run's
	// upserts, so prices the run fails to rediscover age out.
	PushBack time.Duration
}

// Orchestrator executes store runs and sweeps.
type Orchestrator struct {
	pool        db.Pool
	prices      *pricestore.Store
	matcher     *matching.Matcher
	registry    *source.Registry
	invalidator Invalidator
	retry       resilience.RetryConfig
	pushBack    time.Duration
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		pool:        cfg.Pool,
		prices:      cfg.Prices,
		matcher:     cfg.Matcher,
		registry:    cfg.Registry,
		invalidator: cfg.Invalidator,
		retry:       cfg.Retry,
		pushBack:    cfg.PushBack,
	}
}

// RunSweep runs the selected stores sequentially and returns one RunStats
// per requested store, in order, regardless of individual failures. An empty
// slug list sweeps every registered store. The only error return is slug
// resolution; everything downstream is reported through the stats.
func (o *Orchestrator) RunSweep(ctx context.Context, slugs []string) ([]model.RunStats, error) {
	sources, err := o.registry.Select(slugs)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	zap.L().Info("sweep started",
		zap.String("run_id", runID),
		zap.Int("stores", len(sources)),
	)

	stats := make([]model.RunStats, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			stats = append(stats, model.RunStats{
				RunID:  runID,
				Store:  src.Slug(),
				Errors: 1,
				Err:    ctx.Err().Error(),
			})
			continue
		}
		stats = append(stats, o.runStore(ctx, runID, src))
	}

	zap.L().Info("sweep finished", zap.String("run_id", runID))
	return stats, nil
}

// runStore executes one store's full pipeline. Failures are captured in the
// returned stats so a broken store never aborts the sweep.
func (o *Orchestrator) runStore(ctx context.Context, runID string, src source.Source) (stats model.RunStats) {
	start := time.Now()
	stats = model.RunStats{RunID: runID, Store: src.Slug()}
	defer func() {
		stats.Duration = time.Since(start)
		zap.L().Info("store run finished",
			zap.String("run_id", runID),
			zap.String("store", stats.Store),
			zap.Int("scraped", stats.Scraped),
			zap.Int("matched", stats.Matched),
			zap.Int("unmatched", stats.Unmatched),
			zap.Int("dropped", stats.Dropped),
			zap.Int("persisted", stats.Persisted),
			zap.Int("errors", stats.Errors),
			zap.Duration("duration", stats.Duration),
		)
	}()

	retry := o.retry
	retry.OnRetry = resilience.RetryLogger(src.Slug(), "fetch")
	listings, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]model.RawListing, error) {
		return src.Fetch(ctx)
	})
	if err != nil {
		return failed(stats, "fetch listings", err)
	}
	stats.Scraped = len(listings)
	if len(listings) == 0 {
		// A store yielding nothing keeps its previous prices untouched.
		zap.L().Warn("store yielded no listings",
			zap.String("run_id", runID),
			zap.String("store", stats.Store),
		)
		return stats
	}

	products, err := catalog.LoadProducts(ctx, o.pool)
	if err != nil {
		return failed(stats, "load catalog", err)
	}
	storeIDs, err := catalog.LoadStoreIDs(ctx, o.pool)
	if err != nil {
		return failed(stats, "load stores", err)
	}
	storeID, ok := storeIDs[src.Slug()]
	if !ok {
		stats.Errors++
		stats.Err = "store not registered: " + src.Slug()
		return stats
	}
	candidates := matching.PrepareCatalog(products)

	tx, err := o.prices.Begin(ctx)
	if err != nil {
		return failed(stats, "begin tx", err)
	}

	marked, err := o.prices.MarkStale(ctx, tx, storeID, o.pushBack)
	if err != nil {
		_ = tx.Rollback(ctx)
		return failed(stats, "mark stale", err)
	}
	zap.L().Debug("marked existing prices stale",
		zap.String("store", stats.Store),
		zap.Int64("rows", marked),
	)

	for _, listing := range listings {
		if !listing.Valid() {
			stats.Dropped++
			continue
		}
		res := o.matcher.Match(listing, candidates)
		if !res.Matched {
			stats.Unmatched++
			continue
		}
		stats.Matched++

		rec := model.PriceRecord{
			ProductID:        res.ProductID,
			StoreID:          storeID,
			Price:            listing.Price,
			PricePerUnit:     listing.PricePerUnit,
			StoreProductName: listing.Name,
			StoreProductURL:  listing.URL,
		}
		if err := o.prices.UpsertPriceGuarded(ctx, tx, rec); err != nil {
			stats.Errors++
			zap.L().Warn("price upsert failed",
				zap.String("store", stats.Store),
				zap.Int64("product_id", res.ProductID),
				zap.Error(err),
			)
			continue
		}
		stats.Persisted++
	}

	if err := tx.Commit(ctx); err != nil {
		return failed(stats, "commit", err)
	}

	if o.invalidator != nil {
		if _, err := o.invalidator.InvalidateStore(ctx, storeID); err != nil {
			zap.L().Warn("cache invalidation failed",
				zap.String("store", stats.Store),
				zap.Error(err),
			)
		}
	}

	return stats
}

func failed(stats model.RunStats, action string, err error) model.RunStats {
	stats.Errors++
	stats.Err = action + ": " + err.Error()
	zap.L().Error("store run failed",
		zap.String("run_id", stats.RunID),
		zap.String("store", stats.Store),
		zap.String("action", action),
		zap.Error(err),
	)
	return stats
}
