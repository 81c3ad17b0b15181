// Package source implements one adapter per retailer. Each adapter combines
// several fetch strategies (keyword search, category feed, paginated feed,
// rendered HTML as last resort) tried in fixed priority order, stopping at
// the first strategy that yields a non-empty result set.
package source

import (
	"context"

	"github.com/Nemiok/gde-deshevle/internal/model"
	"github.com/Nemiok/gde-deshevle/internal/resilience"
	"github.com/Nemiok/gde-deshevle/internal/scrape"
)

// Source fetches raw listings from one retailer.
type Source interface {
	// Slug returns the stable identifier used for store lookup and
	// registry selection (e.g. "pyaterochka").
	Slug() string

	// Name returns the human-readable retailer name.
	Name() string

	// Fetch obtains all raw listings for one run. Listings are deduplicated
	// by product URL but not yet validated; the orchestrator drops invalid
	// ones. Zero listings with no error is a legitimate outcome.
	Fetch(ctx context.Context) ([]model.RawListing, error)
}

// Deps bundles what every adapter needs: the shared scrape client, the
// inter-request pacer, the keyword set derived from the canonical catalog
// domain, and the pagination safety cap.
type Deps struct {
	Client   *scrape.Client
	Pacer    *resilience.Pacer
	Keywords []string
	MaxPages int
}

func (d Deps) maxPages() int {
	if d.MaxPages <= 0 {
		return 40
	}
	return d.MaxPages
}

func (d Deps) pace(ctx context.Context) error {
	if d.Pacer == nil {
		return ctx.Err()
	}
	return d.Pacer.Wait(ctx)
}
