// Package model defines the core entities of the price ingestion pipeline.
package model

import "time"

// CanonicalProduct is one fixed catalog entry that raw store listings are
// matched against. Loaded read-only once per orchestrator run; the pipeline
// never mutates the catalog.
type CanonicalProduct struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Category string   `json:"category,omitempty"`
}

// RawListing is one scraped item from a retailer before matching.
// Ephemeral: consumed by the matcher, never persisted as-is.
type RawListing struct {
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	PricePerUnit *float64 `json:"price_per_unit,omitempty"`
	Category     string   `json:"category,omitempty"`
	URL          string   `json:"url"`
	ImageURL     string   `json:"image_url,omitempty"`
}

// Valid reports whether the listing is usable for matching. Listings with an
// empty name or a non-positive price are dropped upstream of matching.
func (l RawListing) Valid() bool {
	return l.Name != "" && l.Price > 0
}

// MatchResult ties a raw listing to a canonical product, or marks it
// unmatched. Transient, never persisted.
type MatchResult struct {
	Listing   RawListing `json:"listing"`
	ProductID int64      `json:"product_id"`
	Score     float64    `json:"score"`
	Matched   bool       `json:"matched"`
}

// PriceRecord is the persisted current-price snapshot, uniquely keyed by
// (product_id, store_id). A new observation overwrites the prior row rather
// than accumulating history.
type PriceRecord struct {
	ProductID        int64     `json:"product_id"`
	StoreID          int64     `json:"store_id"`
	Price            float64   `json:"price"`
	PricePerUnit     *float64  `json:"price_per_unit,omitempty"`
	StoreProductName string    `json:"store_product_name"`
	StoreProductURL  string    `json:"store_product_url"`
	ScrapedAt        time.Time `json:"scraped_at"`
}

// RunStats summarizes one (store, run) pass. Returned to the sweep caller,
// never persisted. A failed store run reports Errors > 0 and Err set; callers
// must inspect counts rather than rely on an error return.
type RunStats struct {
	RunID     string        `json:"run_id"`
	Store     string        `json:"store"`
	Scraped   int           `json:"scraped"`
	Matched   int           `json:"matched"`
	Unmatched int           `json:"unmatched"`
	Dropped   int           `json:"dropped"`
	Persisted int           `json:"persisted"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
}
