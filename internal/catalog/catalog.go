// Package catalog provides read-only access to the canonical product catalog
// and the store registry. The pipeline loads both once per orchestrator run
// and never mutates them.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/model"
)

// LoadProducts returns all canonical products with their aliases in id order.
func LoadProducts(ctx context.Context, pool db.Pool) ([]model.CanonicalProduct, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, name, unit, category FROM canonical_products ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load products")
	}
	defer rows.Close()

	var products []model.CanonicalProduct
	index := make(map[int64]int)
	for rows.Next() {
		var p model.CanonicalProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.Category); err != nil {
			return nil, eris.Wrap(err, "catalog: scan product")
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate products")
	}

	aliasRows, err := pool.Query(ctx,
		`SELECT product_id, alias FROM product_aliases ORDER BY product_id, position`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load aliases")
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var productID int64
		var alias string
		if err := aliasRows.Scan(&productID, &alias); err != nil {
			return nil, eris.Wrap(err, "catalog: scan alias")
		}
		if i, ok := index[productID]; ok {
			products[i].Aliases = append(products[i].Aliases, alias)
		}
	}
	if err := aliasRows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate aliases")
	}

	return products, nil
}

// LoadStoreIDs returns the slug → id map for all registered stores.
func LoadStoreIDs(ctx context.Context, pool db.Pool) (map[string]int64, error) {
	rows, err := pool.Query(ctx, `SELECT slug, id FROM stores`)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: load stores")
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var slug string
		var id int64
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, eris.Wrap(err, "catalog: scan store")
		}
		ids[slug] = id
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate stores")
	}
	return ids, nil
}
