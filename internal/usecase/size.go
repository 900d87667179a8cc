package usecase

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeValueRegex extracts a numeric value and unit from a size string like
// "500ml", "0.5 L", "16.9 fl oz" or "6 x 330 ml" (last pair wins for packs).
var sizeValueRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(fl\s*oz|floz|ml|cl|dl|l|liter|litre|liters|litres|oz|lb|lbs|pound|pounds|kg|g|gr|gram|grams|ct|count|pk|pack|pc|pcs|piece|pieces)\b`)

// unit classes; values are normalized to ml, g or count
const (
	unitClassVolume = "volume"
	unitClassWeight = "weight"
	unitClassCount  = "count"
)

type parsedSize struct {
	value float64 // normalized to base unit of its class
	class string
}

// unit conversion factors to the base unit of each class
var unitTable = map[string]struct {
	class  string
	factor float64
}{
	"ml": {unitClassVolume, 1}, "cl": {unitClassVolume, 10}, "dl": {unitClassVolume, 100},
	"l": {unitClassVolume, 1000}, "liter": {unitClassVolume, 1000}, "litre": {unitClassVolume, 1000},
	"liters": {unitClassVolume, 1000}, "litres": {unitClassVolume, 1000},
	"floz": {unitClassVolume, 29.5735}, "fl oz": {unitClassVolume, 29.5735},
	"g": {unitClassWeight, 1}, "gr": {unitClassWeight, 1}, "gram": {unitClassWeight, 1}, "grams": {unitClassWeight, 1},
	"kg": {unitClassWeight, 1000},
	"oz": {unitClassWeight, 28.3495},
	"lb": {unitClassWeight, 453.592}, "lbs": {unitClassWeight, 453.592},
	"pound": {unitClassWeight, 453.592}, "pounds": {unitClassWeight, 453.592},
	"ct": {unitClassCount, 1}, "count": {unitClassCount, 1}, "pk": {unitClassCount, 1},
	"pack": {unitClassCount, 1}, "pc": {unitClassCount, 1}, "pcs": {unitClassCount, 1},
	"piece": {unitClassCount, 1}, "pieces": {unitClassCount, 1},
}

// parseSize extracts the last value+unit pair from a size string and
// normalizes it to its unit class base. Returns false when no parseable
// size is present.
func parseSize(s string) (parsedSize, bool) {
	matches := sizeValueRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return parsedSize{}, false
	}

	m := matches[len(matches)-1]
	raw := strings.ReplaceAll(m[1], ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return parsedSize{}, false
	}

	unit := strings.ToLower(strings.Join(strings.Fields(m[2]), " "))
	entry, ok := unitTable[unit]
	if !ok {
		return parsedSize{}, false
	}

	return parsedSize{value: value * entry.factor, class: entry.class}, true
}

// sizesMatch reports whether two size strings describe the same quantity.
// Values are compared within a 5% tolerance after unit normalization, which
// absorbs unit variants ("500ml" vs "0.5 L") and metric/imperial rounding
// ("16.9 fl oz" vs "500 ml"). Unparseable sizes fall back to a normalized
// string comparison.
func sizesMatch(a, b string) bool {
	pa, okA := parseSize(a)
	pb, okB := parseSize(b)

	if !okA || !okB {
		return normalizeAttribute(a) == normalizeAttribute(b)
	}

	if pa.class != pb.class {
		return false
	}

	larger := pa.value
	smaller := pb.value
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	if larger == 0 {
		return smaller == 0
	}

	return (larger-smaller)/larger <= 0.05
}
