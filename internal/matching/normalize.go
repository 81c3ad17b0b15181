// Package matching maps free-text store listing names onto canonical catalog
// products using text normalization and fuzzy similarity scoring.
package matching

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// quantity matches a numeric amount followed by a unit token, optionally
// preceded by a multipack multiplier ("12x100мл", "2 х 0.5 л"). Covers the
// Cyrillic and Latin unit spellings the retail sources use. The unit must be
// followed by whitespace or end of string; \b is useless here because Go's
// word boundary is ASCII-only.
var quantity = regexp.MustCompile(
	`(?i)(?:\d+(?:[.,]\d+)?\s*[xх]\s*)?\d+(?:[.,]\d+)?\s*` +
		`(?:кг|мг|мл|гр|г|л|шт|уп|пак|бан|бут|kg|ml|pcs|g|l)\.?(?:\s|$)`)

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// Normalize reduces a product name to a comparable form: NFC unicode
// normalization, lowercase, quantity/unit token stripping, punctuation to
// whitespace, collapsed spacing. Stripping runs to a fixpoint so that
// punctuation removal cannot expose a quantity token that survives; this
// makes Normalize idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	n := norm.NFC.String(name)
	n = strings.ToLower(n)
	// The multiplication sign would be lost to punctuation stripping before
	// the multipack multiplier can match.
	n = strings.ReplaceAll(n, "×", "x")
	n = quantity.ReplaceAllString(n, " ")
	n = punctuation.ReplaceAllString(n, " ")

	for {
		stripped := quantity.ReplaceAllString(n, " ")
		stripped = multiSpace.ReplaceAllString(stripped, " ")
		stripped = strings.TrimSpace(stripped)
		if stripped == n {
			return n
		}
		n = stripped
	}
}
