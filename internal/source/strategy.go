package source

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
	"github.com/Nemiok/gde-deshevle/internal/scrape"
)

// strategy is one way of obtaining listings from a retailer. Adapters order
// their strategies from most structured (official-looking JSON endpoints)
// to least (rendered HTML).
type strategy struct {
	name string
	run  func(ctx context.Context) ([]model.RawListing, error)
}

// runStrategies tries strategies in order and returns the deduplicated
// result of the first one yielding any listings. A blocked or failed
// strategy falls through to the next; only when every strategy comes back
// empty does the last error (if any) surface.
func runStrategies(ctx context.Context, slug string, strategies []strategy) ([]model.RawListing, error) {
	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listings, err := s.run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			level := zap.L().Warn
			if errors.Is(err, scrape.ErrBlocked) {
				level = zap.L().Info
			}
			level("strategy failed, falling back",
				zap.String("source", slug),
				zap.String("strategy", s.name),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if len(listings) > 0 {
			zap.L().Debug("strategy yielded listings",
				zap.String("source", slug),
				zap.String("strategy", s.name),
				zap.Int("listings", len(listings)),
			)
			return Dedup(listings), nil
		}
		zap.L().Debug("strategy yielded nothing, falling back",
			zap.String("source", slug),
			zap.String("strategy", s.name),
		)
	}
	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "source %s: all strategies exhausted", slug)
	}
	return nil, nil
}
