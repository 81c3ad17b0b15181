package catalog

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, unit, category FROM canonical_products`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "unit", "category"}).
			AddRow(int64(1), "Молоко 3.2%", "л", "молочные продукты").
			AddRow(int64(2), "Хлеб Бородинский", "шт", "хлеб"))
	mock.ExpectQuery(`SELECT product_id, alias FROM product_aliases`).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "alias"}).
			AddRow(int64(1), "Молоко цельное 3.2%").
			AddRow(int64(1), "Молоко пастеризованное 3.2%"))

	products, err := LoadProducts(context.Background(), mock)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Молоко 3.2%", products[0].Name)
	assert.Equal(t, []string{"Молоко цельное 3.2%", "Молоко пастеризованное 3.2%"}, products[0].Aliases)
	assert.Empty(t, products[1].Aliases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadProducts_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, unit, category FROM canonical_products`).
		WillReturnError(assert.AnError)

	_, err = LoadProducts(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: load products")
}

func TestLoadStoreIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT slug, id FROM stores`).
		WillReturnRows(pgxmock.NewRows([]string{"slug", "id"}).
			AddRow("pyaterochka", int64(1)).
			AddRow("magnit", int64(2)))

	ids, err := LoadStoreIDs(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pyaterochka": 1, "magnit": 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
