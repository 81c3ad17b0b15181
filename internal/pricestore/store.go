// Package pricestore persists the current-price snapshot per
// (product, store) pair.
package pricestore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/model"
)

const migration = `
CREATE TABLE IF NOT EXISTS stores (
	id   BIGSERIAL PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS canonical_products (
	id       BIGSERIAL PRIMARY KEY,
	name     TEXT NOT NULL,
	unit     TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS product_aliases (
	product_id BIGINT NOT NULL REFERENCES canonical_products(id),
	alias      TEXT NOT NULL,
	position   INT NOT NULL DEFAULT 0,
	PRIMARY KEY (product_id, alias)
);

CREATE TABLE IF NOT EXISTS prices (
	product_id         BIGINT NOT NULL REFERENCES canonical_products(id),
	store_id           BIGINT NOT NULL REFERENCES stores(id),
	price              NUMERIC(12,2) NOT NULL CHECK (price > 0),
	price_per_unit     NUMERIC(12,2),
	store_product_name TEXT NOT NULL,
	store_product_url  TEXT NOT NULL,
	scraped_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product_id, store_id)
);

CREATE INDEX IF NOT EXISTS idx_prices_store_id ON prices(store_id);
CREATE INDEX IF NOT EXISTS idx_prices_scraped_at ON prices(scraped_at);

INSERT INTO stores (slug, name) VALUES
	('pyaterochka', 'Пятёрочка'),
	('perekrestok', 'Перекрёсток'),
	('magnit', 'Магнит'),
	('lenta', 'Лента'),
	('auchan', 'Ашан')
ON CONFLICT (slug) DO NOTHING;
`

// Store provides price snapshot persistence over a shared pool.
type Store struct {
	pool db.Pool
}

// New creates a price store.
func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the schema and seeds the fixed store set.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "pricestore: migrate")
	}
	return nil
}

// MarkStale pushes scraped_at far into the past for every price row of the
// store, so rows the upcoming run fails to rediscover age out of freshness
// filters instead of lying about their age. Must run inside the same
// transaction as the subsequent upserts, before any of them.
func (s *Store) MarkStale(ctx context.Context, tx pgx.Tx, storeID int64, pushBack time.Duration) (int64, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE prices SET scraped_at = now() - $2::interval WHERE store_id = $1`,
		storeID, pushBack)
	if err != nil {
		return 0, eris.Wrapf(err, "pricestore: mark stale for store %d", storeID)
	}
	return tag.RowsAffected(), nil
}

// UpsertPrice inserts or overwrites the single live row for the record's
// (product_id, store_id) key.
func (s *Store) UpsertPrice(ctx context.Context, tx pgx.Tx, rec model.PriceRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO prices (product_id, store_id, price, price_per_unit, store_product_name, store_product_url, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (product_id, store_id) DO UPDATE SET
			price = EXCLUDED.price,
			price_per_unit = EXCLUDED.price_per_unit,
			store_product_name = EXCLUDED.store_product_name,
			store_product_url = EXCLUDED.store_product_url,
			scraped_at = EXCLUDED.scraped_at`,
		rec.ProductID, rec.StoreID, rec.Price, rec.PricePerUnit,
		rec.StoreProductName, rec.StoreProductURL)
	if err != nil {
		return eris.Wrapf(err, "pricestore: upsert price for product %d store %d",
			rec.ProductID, rec.StoreID)
	}
	return nil
}

// UpsertPriceGuarded wraps UpsertPrice in a savepoint so a row-level failure
// (e.g. a constraint violation) rolls back only that row and leaves the
// enclosing store-run transaction usable.
func (s *Store) UpsertPriceGuarded(ctx context.Context, tx pgx.Tx, rec model.PriceRecord) error {
	if _, err := tx.Exec(ctx, `SAVEPOINT price_upsert`); err != nil {
		return eris.Wrap(err, "pricestore: savepoint")
	}
	if err := s.UpsertPrice(ctx, tx, rec); err != nil {
		if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT price_upsert`); rbErr != nil {
			return eris.Wrap(rbErr, "pricestore: rollback to savepoint")
		}
		return err
	}
	if _, err := tx.Exec(ctx, `RELEASE SAVEPOINT price_upsert`); err != nil {
		return eris.Wrap(err, "pricestore: release savepoint")
	}
	return nil
}

// FreshPrices returns the store's price rows that pass the freshness filter.
// A zero maxAge disables the filter and returns every row.
func (s *Store) FreshPrices(ctx context.Context, storeID int64, maxAge time.Duration) ([]model.PriceRecord, error) {
	query := `SELECT product_id, store_id, price, price_per_unit, store_product_name, store_product_url, scraped_at
		FROM prices WHERE store_id = $1`
	args := []any{storeID}
	if maxAge > 0 {
		query += ` AND scraped_at > now() - $2::interval`
		args = append(args, maxAge)
	}
	query += ` ORDER BY product_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "pricestore: fresh prices for store %d", storeID)
	}
	defer rows.Close()

	var records []model.PriceRecord
	for rows.Next() {
		var rec model.PriceRecord
		if err := rows.Scan(&rec.ProductID, &rec.StoreID, &rec.Price, &rec.PricePerUnit,
			&rec.StoreProductName, &rec.StoreProductURL, &rec.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "pricestore: scan price")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "pricestore: iterate prices")
	}
	return records, nil
}

// Begin opens the single transaction a store run persists under.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pricestore: begin tx")
	}
	return tx, nil
}
