package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nemiok/gde-deshevle/internal/matching"
	"github.com/Nemiok/gde-deshevle/internal/model"
	"github.com/Nemiok/gde-deshevle/internal/pricestore"
	"github.com/Nemiok/gde-deshevle/internal/resilience"
	"github.com/Nemiok/gde-deshevle/internal/source"
)

type stubSource struct {
	slug  string
	fetch func(ctx context.Context) ([]model.RawListing, error)
}

func (s stubSource) Slug() string { return s.slug }
func (s stubSource) Name() string { return s.slug }
func (s stubSource) Fetch(ctx context.Context) ([]model.RawListing, error) {
	return s.fetch(ctx)
}

type fakeInvalidator struct {
	calls []int64
	err   error
}

func (f *fakeInvalidator) InvalidateStore(_ context.Context, storeID int64) (int64, error) {
	f.calls = append(f.calls, storeID)
	return 0, f.err
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func newOrchestrator(mock pgxmock.PgxPoolIface, inv Invalidator, sources ...source.Source) *Orchestrator {
	registry := source.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}
	return NewOrchestrator(OrchestratorConfig{
		Pool:        mock,
		Prices:      pricestore.New(mock),
		Matcher:     matching.NewMatcher(matching.DefaultThreshold),
		Registry:    registry,
		Invalidator: inv,
		Retry:       fastRetry(),
		PushBack:    87600 * time.Hour,
	})
}

// expectCatalogLoad queues the catalog and store lookups every persisting
// run performs.
func expectCatalogLoad(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id, name, unit, category FROM canonical_products`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "unit", "category"}).
			AddRow(int64(1), "Молоко 3.2%", "л", "молочные продукты").
			AddRow(int64(2), "Хлеб Дарницкий", "шт", "хлеб"))
	mock.ExpectQuery(`SELECT product_id, alias FROM product_aliases`).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "alias"}).
			AddRow(int64(1), "Молоко пастеризованное 3.2%"))
	mock.ExpectQuery(`SELECT slug, id FROM stores`).
		WillReturnRows(pgxmock.NewRows([]string{"slug", "id"}).
			AddRow("teststore", int64(3)))
}

func expectGuardedUpsert(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(`SAVEPOINT price_upsert`).
		WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO prices`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`RELEASE SAVEPOINT price_upsert`).
		WillReturnResult(pgxmock.NewResult("RELEASE", 0))
}

func TestRunSweep_HappyPath(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCatalogLoad(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET scraped_at`).
		WithArgs(int64(3), 87600*time.Hour).
		WillReturnResult(pgxmock.NewResult("UPDATE", 5))
	expectGuardedUpsert(mock)
	mock.ExpectCommit()

	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		return []model.RawListing{
			{Name: "Молоко 3.2% 930мл", Price: 89.99, URL: "https://x.ru/p/1"},
			{Name: "Шуруповёрт аккумуляторный", Price: 2999, URL: "https://x.ru/p/2"},
			{Name: "Товар без цены", Price: 0, URL: "https://x.ru/p/3"},
		}, nil
	}}
	inv := &fakeInvalidator{}

	stats, err := newOrchestrator(mock, inv, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, "teststore", s.Store)
	assert.Equal(t, 3, s.Scraped)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 1, s.Unmatched)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 1, s.Persisted)
	assert.Zero(t, s.Errors)
	assert.Empty(t, s.Err)

	assert.Equal(t, []int64{3}, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSweep_ZeroListingsSkipsPersistence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		return nil, nil
	}}
	inv := &fakeInvalidator{}

	stats, err := newOrchestrator(mock, inv, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Scraped)
	assert.Zero(t, stats[0].Errors)
	assert.Empty(t, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSweep_FetchRetriesThenFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var attempts int
	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		attempts++
		return nil, resilience.NewTransientError(errors.New("upstream 503"), 503)
	}}

	stats, err := newOrchestrator(mock, nil, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 2, attempts) // initial try plus one retry
	assert.Equal(t, 1, stats[0].Errors)
	assert.Contains(t, stats[0].Err, "fetch listings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSweep_FailedStoreDoesNotAbortSweep(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ok := func(context.Context) ([]model.RawListing, error) { return nil, nil }
	bad := func(context.Context) ([]model.RawListing, error) {
		return nil, errors.New("parser exploded")
	}

	stats, err := newOrchestrator(mock, nil,
		stubSource{slug: "a", fetch: ok},
		stubSource{slug: "b", fetch: bad},
		stubSource{slug: "c", fetch: ok},
	).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, "a", stats[0].Store)
	assert.Zero(t, stats[0].Errors)
	assert.Equal(t, "b", stats[1].Store)
	assert.Equal(t, 1, stats[1].Errors)
	assert.Equal(t, "c", stats[2].Store)
	assert.Zero(t, stats[2].Errors)

	// All stores share one run id.
	assert.Equal(t, stats[0].RunID, stats[1].RunID)
	assert.Equal(t, stats[1].RunID, stats[2].RunID)
}

func TestRunSweep_UnknownSlug(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = newOrchestrator(mock, nil, stubSource{slug: "a", fetch: nil}).
		RunSweep(context.Background(), []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestRunSweep_RowFailureIsolated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCatalogLoad(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET scraped_at`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	// First row fails inside its savepoint, second row still lands.
	mock.ExpectExec(`SAVEPOINT price_upsert`).
		WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`INSERT INTO prices`).
		WillReturnError(errors.New("numeric overflow"))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT price_upsert`).
		WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	expectGuardedUpsert(mock)
	mock.ExpectCommit()

	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		return []model.RawListing{
			{Name: "Молоко 3.2%", Price: 89.99, URL: "https://x.ru/p/1"},
			{Name: "Хлеб Дарницкий", Price: 45.50, URL: "https://x.ru/p/2"},
		}, nil
	}}

	stats, err := newOrchestrator(mock, nil, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 2, stats[0].Matched)
	assert.Equal(t, 1, stats[0].Persisted)
	assert.Equal(t, 1, stats[0].Errors)
	assert.Empty(t, stats[0].Err) // row failures don't fail the run
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSweep_MarkStaleFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCatalogLoad(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET scraped_at`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		return []model.RawListing{{Name: "Молоко 3.2%", Price: 89.99, URL: "https://x.ru/p/1"}}, nil
	}}
	inv := &fakeInvalidator{}

	stats, err := newOrchestrator(mock, inv, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 1, stats[0].Errors)
	assert.Contains(t, stats[0].Err, "mark stale")
	assert.Empty(t, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSweep_InvalidationFailureIsBestEffort(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectCatalogLoad(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET scraped_at`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	expectGuardedUpsert(mock)
	mock.ExpectCommit()

	src := stubSource{slug: "teststore", fetch: func(context.Context) ([]model.RawListing, error) {
		return []model.RawListing{{Name: "Молоко 3.2%", Price: 89.99, URL: "https://x.ru/p/1"}}, nil
	}}
	inv := &fakeInvalidator{err: errors.New("redis down")}

	stats, err := newOrchestrator(mock, inv, src).RunSweep(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 1, stats[0].Persisted)
	assert.Zero(t, stats[0].Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}
