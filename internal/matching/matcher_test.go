package matching

import (
	"testing"

	"github.com/antzucaro/matchr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

func catalogOf(products ...model.CanonicalProduct) []Candidate {
	return PrepareCatalog(products)
}

func TestMatch_ExactName(t *testing.T) {
	catalog := catalogOf(
		model.CanonicalProduct{ID: 1, Name: "Молоко 3.2%"},
		model.CanonicalProduct{ID: 2, Name: "Хлеб Бородинский"},
	)
	m := NewMatcher(DefaultThreshold)

	res := m.Match(model.RawListing{Name: "Хлеб Бородинский 400г", Price: 45}, catalog)
	require.True(t, res.Matched)
	assert.Equal(t, int64(2), res.ProductID)
	assert.Equal(t, 1.0, res.Score)
}

func TestMatch_ViaAlias(t *testing.T) {
	catalog := catalogOf(
		model.CanonicalProduct{
			ID:      7,
			Name:    "Молоко 3.2%",
			Aliases: []string{"Молоко цельное 3.2%", "Молоко пастеризованное 3.2%"},
		},
	)
	m := NewMatcher(DefaultThreshold)

	res := m.Match(model.RawListing{Name: "Молоко пастеризованное 3.2% 930мл", Price: 89}, catalog)
	require.True(t, res.Matched)
	assert.Equal(t, int64(7), res.ProductID)
	assert.GreaterOrEqual(t, res.Score, DefaultThreshold)
}

func TestMatch_Unmatched(t *testing.T) {
	catalog := catalogOf(
		model.CanonicalProduct{ID: 1, Name: "Молоко 3.2%"},
	)
	m := NewMatcher(DefaultThreshold)

	res := m.Match(model.RawListing{Name: "Стиральный порошок автомат", Price: 300}, catalog)
	assert.False(t, res.Matched)
	assert.Zero(t, res.ProductID)
}

func TestMatch_ThresholdBoundary(t *testing.T) {
	// Compute the real score for a near-miss pair, then pin the threshold
	// exactly on it: score == threshold is accepted, threshold+ε rejects.
	raw := Normalize("Кефир 1%")
	cand := Normalize("Кефир 2.5%")
	score := matchr.JaroWinkler(raw, cand, false)
	require.Greater(t, score, 0.0)
	require.Less(t, score, 1.0)

	catalog := catalogOf(model.CanonicalProduct{ID: 3, Name: "Кефир 2.5%"})
	listing := model.RawListing{Name: "Кефир 1%", Price: 70}

	atThreshold := NewMatcher(score)
	res := atThreshold.Match(listing, catalog)
	assert.True(t, res.Matched, "score equal to threshold must be accepted")

	aboveThreshold := NewMatcher(score + 1e-9)
	res = aboveThreshold.Match(listing, catalog)
	assert.False(t, res.Matched, "score below threshold must be rejected")
}

func TestMatch_TieBreakLowestID(t *testing.T) {
	// Identical names score identically; the lower ID must win regardless
	// of catalog order.
	first := model.CanonicalProduct{ID: 10, Name: "Сахар песок"}
	second := model.CanonicalProduct{ID: 4, Name: "Сахар песок"}
	m := NewMatcher(DefaultThreshold)

	res := m.Match(model.RawListing{Name: "Сахар песок 1кг", Price: 65}, catalogOf(first, second))
	require.True(t, res.Matched)
	assert.Equal(t, int64(4), res.ProductID)

	res = m.Match(model.RawListing{Name: "Сахар песок 1кг", Price: 65}, catalogOf(second, first))
	require.True(t, res.Matched)
	assert.Equal(t, int64(4), res.ProductID)
}

func TestMatch_EmptyNormalizedName(t *testing.T) {
	catalog := catalogOf(model.CanonicalProduct{ID: 1, Name: "Молоко 3.2%"})
	m := NewMatcher(DefaultThreshold)

	res := m.Match(model.RawListing{Name: "500мл", Price: 10}, catalog)
	assert.False(t, res.Matched)
}

func TestMatch_NeverBelowThreshold(t *testing.T) {
	catalog := catalogOf(
		model.CanonicalProduct{ID: 1, Name: "Молоко 3.2%"},
		model.CanonicalProduct{ID: 2, Name: "Хлеб Бородинский"},
		model.CanonicalProduct{ID: 3, Name: "Яйца куриные С1"},
	)
	m := NewMatcher(DefaultThreshold)

	listings := []string{
		"Молоко топлёное 4% 930мл",
		"Гвозди строительные 100шт",
		"Хлеб",
		"qwertyuiop",
	}
	for _, name := range listings {
		res := m.Match(model.RawListing{Name: name, Price: 1}, catalog)
		if res.Matched {
			assert.GreaterOrEqual(t, res.Score, DefaultThreshold, "listing %q", name)
		}
	}
}

func TestPrepareCatalog_NormalizesOnce(t *testing.T) {
	catalog := PrepareCatalog([]model.CanonicalProduct{
		{ID: 1, Name: "Молоко 3.2%", Aliases: []string{"Молоко цельное 3.2%"}},
	})
	require.Len(t, catalog, 1)
	assert.Equal(t, []string{"молоко 3 2", "молоко цельное 3 2"}, catalog[0].normalized)
}

func TestNewMatcher_FallbackThreshold(t *testing.T) {
	m := NewMatcher(0)
	assert.Equal(t, DefaultThreshold, m.threshold)
}
