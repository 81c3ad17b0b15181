package source

import (
	"regexp"
	"strconv"
	"strings"
)

// absURL resolves a feed-relative path against the adapter's base URL.
// Already-absolute URLs pass through.
func absURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// priceRe matches an amount with optional thousands spacing and a comma or
// dot decimal part, e.g. "89,99", "1 049.00", "129".
var priceRe = regexp.MustCompile(`\d+(?:[ \x{00a0}]\d{3})*(?:[.,]\d+)?`)

// parsePriceText extracts a ruble amount from rendered price text such as
// "89,99 ₽" or "1 049.00 руб.". Returns 0 when no number is present.
func parsePriceText(text string) float64 {
	match := priceRe.FindString(text)
	if match == "" {
		return 0
	}
	match = strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(match)
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}
