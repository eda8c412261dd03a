package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugSpaces  = regexp.MustCompile(`\s`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// Slugify lowercases the title, folds diacritics, turns each whitespace
// character into "-" and drops every other non-word character.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}
	s := strings.ToLower(strings.TrimSpace(folded))
	s = slugSpaces.ReplaceAllString(s, "-")
	return slugInvalid.ReplaceAllString(s, "")
}

// productSKU is the leading token of the first variant sku, before any "_".
func productSKU(variantSKU string) string {
	if i := strings.Index(variantSKU, "_"); i >= 0 {
		return variantSKU[:i]
	}
	return variantSKU
}
