package matching

import (
	"github.com/antzucaro/matchr"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

// DefaultThreshold is the minimum similarity score for an accepted match.
const DefaultThreshold = 0.65

// Candidate is one canonical product with its comparison set normalized once
// per run.
type Candidate struct {
	Product    model.CanonicalProduct
	normalized []string // normalized name + aliases
}

// PrepareCatalog normalizes the canonical set once so per-listing matching
// does not re-normalize tens of names per candidate.
func PrepareCatalog(products []model.CanonicalProduct) []Candidate {
	out := make([]Candidate, 0, len(products))
	for _, p := range products {
		c := Candidate{Product: p}
		c.normalized = append(c.normalized, Normalize(p.Name))
		for _, a := range p.Aliases {
			c.normalized = append(c.normalized, Normalize(a))
		}
		out = append(out, c)
	}
	return out
}

// Matcher scores raw listing names against a prepared canonical set.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given acceptance threshold;
// a non-positive threshold falls back to DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Score returns the best Jaro-Winkler similarity between the normalized raw
// name and the candidate's normalized name and aliases.
func (m *Matcher) Score(normalizedRaw string, c Candidate) float64 {
	best := 0.0
	for _, n := range c.normalized {
		if n == "" {
			continue
		}
		s := matchr.JaroWinkler(normalizedRaw, n, false)
		if s > best {
			best = s
		}
	}
	return best
}

// Match selects the highest-scoring canonical product for the listing.
// A candidate is accepted only when its score reaches the threshold
// (score == threshold is accepted). Ties on score break toward the lowest
// product ID, which keeps results independent of catalog iteration order.
func (m *Matcher) Match(listing model.RawListing, catalog []Candidate) model.MatchResult {
	normalizedRaw := Normalize(listing.Name)
	result := model.MatchResult{Listing: listing}
	if normalizedRaw == "" {
		return result
	}

	var (
		bestScore float64
		bestID    int64
		found     bool
	)
	for _, c := range catalog {
		s := m.Score(normalizedRaw, c)
		if s > bestScore || (found && s == bestScore && c.Product.ID < bestID) {
			bestScore = s
			bestID = c.Product.ID
			found = true
		}
	}

	if !found || bestScore < m.threshold {
		result.Score = bestScore
		return result
	}

	result.ProductID = bestID
	result.Score = bestScore
	result.Matched = true
	return result
}
