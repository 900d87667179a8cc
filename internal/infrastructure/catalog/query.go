package catalog

import (
	"regexp"
	"strings"

	"github.com/shelfmatch/backend/internal/domain"
)

// Compiled regex patterns for query building
var (
	// Matches size/quantity patterns like "500 ml", "1.5 l", "330ml", "12 oz"
	sizePatternRegex = regexp.MustCompile(
		`(?i)\b\d+\.?\d*\s*(?:fl\s*oz|oz|ml|cl|liters?|litres?|l|gallons?|gal|lbs?|pounds?|kg|grams?|g|ct|count|pk|pack|ea|each)\b`,
	)

	// Matches pack/count patterns like "6-pack", "pack of 4", "24 count"
	packCountRegex = regexp.MustCompile(`(?i)\b\d+[-\s]*(pack|pk|count|ct)\b|\bpack\s*of\s*\d+\b`)

	// Characters that break the search API query parser
	specialCharsRegex = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~` + "`" + `]`)

	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// queryNoiseWords are marketing and packaging terms that add noise to
// shelf-label product names without narrowing the catalog search.
var queryNoiseWords = map[string]bool{
	"value": true, "family": true, "bonus": true, "new": true,
	"improved": true, "premium": true, "original": true, "classic": true,
	"size": true, "pack": true, "bottle": true, "can": true,
	"box": true, "bag": true, "jar": true, "carton": true,
	"multipack": true, "promo": true, "offer": true, "edition": true,
}

// BuildSearchTerm builds a focused catalog query from a detection's extracted
// attributes. Shelf-label extractions are noisy (size fragments, packaging
// words), so the product name is cleaned before the brand and flavor are
// folded in.
func BuildSearchTerm(query domain.SearchQuery) string {
	name := cleanProductName(query.ProductName)

	// Prepend brand unless the cleaned name already contains it
	if query.Brand != "" {
		brandLower := strings.ToLower(query.Brand)
		if !strings.Contains(strings.ToLower(name), brandLower) {
			name = strings.TrimSpace(query.Brand + " " + name)
		}
	}

	// Append flavor if it isn't already part of the name
	if query.Flavor != "" {
		flavorLower := strings.ToLower(query.Flavor)
		if !strings.Contains(strings.ToLower(name), flavorLower) {
			name = strings.TrimSpace(name + " " + query.Flavor)
		}
	}

	// Cap query length to avoid search API errors, cutting at a word boundary
	if len(name) > 100 {
		name = name[:100]
		if lastSpace := strings.LastIndex(name, " "); lastSpace > 50 {
			name = name[:lastSpace]
		}
	}

	return strings.TrimSpace(name)
}

// cleanProductName strips size fragments, pack counts, special characters and
// noise words from an extracted product name.
func cleanProductName(name string) string {
	if name == "" {
		return ""
	}

	// Take only text before first comma (strip trailing size/packaging info)
	if idx := strings.Index(name, ","); idx > 0 {
		name = name[:idx]
	}

	name = strings.ReplaceAll(name, "&", " and ")
	name = specialCharsRegex.ReplaceAllString(name, " ")
	name = sizePatternRegex.ReplaceAllString(name, " ")
	name = packCountRegex.ReplaceAllString(name, " ")
	name = removeNoiseWords(name)

	name = multipleSpacesRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// removeNoiseWords drops marketing/packaging terms from the query
func removeNoiseWords(s string) string {
	words := strings.Fields(s)
	var kept []string

	for _, word := range words {
		cleanWord := strings.ToLower(strings.Trim(word, ",.!?;:-'\""))
		if !queryNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}
