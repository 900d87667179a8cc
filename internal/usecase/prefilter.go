package usecase

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/shelfmatch/backend/internal/domain"
)

// Component weights for the pre-filter score
const (
	brandWeight = 0.45
	nameWeight  = 0.35
	sizeWeight  = 0.20

	fuzzyBrandScore    = 0.7  // fuzzy brand matches score below exact ones
	containsBrandScore = 0.85 // one brand string containing the other
	neutralScore       = 0.5  // attribute unknown on either side
	storeHintBoost     = 10.0 // candidate tagged for the detection's retailer
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// PreFilterConfig holds configuration for the pre-filter scorer
type PreFilterConfig struct {
	SimilarityFloor     float64
	SafetyCap           int
	SizeConfidenceFloor float64
	EnableDebugLogging  bool
}

// PreFilter cheaply eliminates obviously-wrong candidates before any visual
// comparison budget is spent. Scoring is deterministic: equal scores are
// broken by catalog key.
type PreFilter struct {
	similarityFloor     float64
	safetyCap           int
	sizeConfidenceFloor float64
	enableDebugLogging  bool
}

// ScoredCandidate is a candidate with its pre-filter similarity score (0-100).
type ScoredCandidate struct {
	domain.Candidate
	Score float64
}

// NewPreFilter creates a pre-filter scorer with the given configuration
func NewPreFilter(config PreFilterConfig) *PreFilter {
	floor := config.SimilarityFloor
	if floor <= 0 {
		floor = 35.0
	}

	safetyCap := config.SafetyCap
	if safetyCap <= 0 {
		safetyCap = 5
	}

	sizeFloor := config.SizeConfidenceFloor
	if sizeFloor <= 0 {
		sizeFloor = 0.5
	}

	return &PreFilter{
		similarityFloor:     floor,
		safetyCap:           safetyCap,
		sizeConfidenceFloor: sizeFloor,
		enableDebugLogging:  config.EnableDebugLogging,
	}
}

// Narrow scores every candidate against the detection's extracted attributes
// and returns the ordered subset above the similarity floor.
//
// Size handling is confidence-aware: a confidently-extracted size that
// contradicts the candidate rejects it outright, while a low-confidence size
// only withholds the size component of the score.
//
// When nothing passes the floor and the brand is completely unknown, the
// original list truncated to the safety cap is returned instead of an empty
// set. Once a brand is known, empty means empty - no silent widening.
func (f *PreFilter) Narrow(det *domain.Detection, candidates []domain.Candidate, storeHint string) []ScoredCandidate {
	sizeConfident := det.Confidence.Size >= f.sizeConfidenceFloor

	var passed []ScoredCandidate
	for _, candidate := range candidates {
		score, rejected := f.scoreCandidate(det, candidate, storeHint, sizeConfident)

		if f.enableDebugLogging {
			log.Printf("[PREFILTER] %s %q score=%.1f rejected=%v", candidate.CatalogKey, candidate.Name, score, rejected)
		}

		if rejected || score < f.similarityFloor {
			continue
		}
		passed = append(passed, ScoredCandidate{Candidate: candidate, Score: score})
	}

	if len(passed) == 0 {
		if det.Brand == "" {
			// Brand unknown: nothing to anchor the text filter on, so fall
			// back to the search service's own ranking, capped.
			capped := candidates
			if len(capped) > f.safetyCap {
				capped = capped[:f.safetyCap]
			}
			widened := make([]ScoredCandidate, 0, len(capped))
			for _, candidate := range capped {
				widened = append(widened, ScoredCandidate{Candidate: candidate})
			}
			if f.enableDebugLogging {
				log.Printf("[PREFILTER] no candidate passed, brand unknown - widening to %d candidates", len(widened))
			}
			return widened
		}
		return nil
	}

	sort.Slice(passed, func(i, j int) bool {
		if passed[i].Score != passed[j].Score {
			return passed[i].Score > passed[j].Score
		}
		return passed[i].CatalogKey < passed[j].CatalogKey
	})

	return passed
}

// scoreCandidate computes the weighted similarity score for one candidate.
// The second return value is true when a confident size contradiction
// disqualifies the candidate regardless of its text score.
func (f *PreFilter) scoreCandidate(det *domain.Detection, candidate domain.Candidate, storeHint string, sizeConfident bool) (float64, bool) {
	brandScore := scoreBrand(det.Brand, candidate.Brand)
	nameScore := scoreName(det.ProductName, candidate.Name)

	sizeScore := neutralScore
	if det.Size != "" && candidate.Size != "" {
		if sizesMatch(det.Size, candidate.Size) {
			sizeScore = 1.0
		} else if sizeConfident {
			return 0, true
		} else {
			sizeScore = 0
		}
	}

	score := (brandScore*brandWeight + nameScore*nameWeight + sizeScore*sizeWeight) * 100

	if storeHint != "" && hasStoreTag(candidate, storeHint) {
		score += storeHintBoost
	}

	if score > 100 {
		score = 100
	}
	return score, false
}

// scoreBrand compares brands: exact > containment > fuzzy single-edit.
// Unknown on either side scores neutral.
func scoreBrand(detected, candidate string) float64 {
	if detected == "" || candidate == "" {
		return neutralScore
	}

	d := normalizeAttribute(detected)
	c := normalizeAttribute(candidate)

	switch {
	case d == c:
		return 1.0
	case strings.Contains(c, d) || strings.Contains(d, c):
		return containsBrandScore
	case fuzzyTokenMatch(d, c, 1):
		return fuzzyBrandScore
	}
	return 0
}

// scoreName measures token overlap between the detected product name and the
// candidate's catalog name. Detection-side coverage carries the most weight:
// catalog names are long and carry details the shelf label never shows.
func scoreName(detected, candidate string) float64 {
	if detected == "" || candidate == "" {
		return neutralScore
	}

	detTokens := tokenize(detected)
	candTokens := tokenize(candidate)
	if len(detTokens) == 0 || len(candTokens) == 0 {
		return neutralScore
	}

	detMatched := countIntersection(detTokens, candTokens)
	detCoverage := float64(detMatched) / float64(len(detTokens))

	candMatched := countIntersection(candTokens, detTokens)
	candCoverage := float64(candMatched) / float64(len(candTokens))

	jaccard := float64(detMatched) / float64(countUnion(detTokens, candTokens))

	return detCoverage*0.60 + candCoverage*0.20 + jaccard*0.20
}

func hasStoreTag(candidate domain.Candidate, storeHint string) bool {
	hint := strings.ToLower(strings.TrimSpace(storeHint))
	for _, tag := range candidate.StoreTags {
		if strings.ToLower(strings.TrimSpace(tag)) == hint {
			return true
		}
	}
	return false
}

// normalizeAttribute lowercases and strips punctuation for comparison
func normalizeAttribute(s string) string {
	s = punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// tokenize splits a string into normalized lowercase tokens, dropping
// single-character and pure numeric tokens.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens > 4 chars to avoid false positives
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Two rows instead of the full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// countIntersection returns how many tokens of tokens1 appear in tokens2
func countIntersection(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens2 {
		set[t] = true
	}

	count := 0
	seen := make(map[string]bool)
	for _, t := range tokens1 {
		if set[t] && !seen[t] {
			count++
			seen[t] = true
		}
	}
	return count
}

// countUnion returns the count of unique tokens across both sets
func countUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
