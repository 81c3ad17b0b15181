package source

import (
	"strings"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

// dedupKey identifies a listing within one adapter run. Product URL when
// present, otherwise the lowercased name.
func dedupKey(l model.RawListing) string {
	if l.URL != "" {
		return "url:" + l.URL
	}
	return "name:" + strings.ToLower(strings.TrimSpace(l.Name))
}

// Dedup collapses listings sharing a key, keeping the last occurrence.
// Feeds and search results routinely repeat items across pages; the later
// occurrence reflects the fresher page.
func Dedup(listings []model.RawListing) []model.RawListing {
	if len(listings) == 0 {
		return listings
	}
	index := make(map[string]int, len(listings))
	out := make([]model.RawListing, 0, len(listings))
	for _, l := range listings {
		key := dedupKey(l)
		if i, ok := index[key]; ok {
			out[i] = l
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}
