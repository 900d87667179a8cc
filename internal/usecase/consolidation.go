package usecase

import "github.com/shelfmatch/backend/internal/domain"

// Consolidate converts a classified candidate set into the final outcome for
// a detection. It is a pure decision table, not a scored ranking: ties and
// multiplicity always route to manual review rather than an arbitrary pick,
// so the policy never guesses.
//
// Evaluated in order:
//  1. exactly one identical            -> auto_match, select it
//  2. multiple identical               -> manual_review (ambiguous)
//  3. no identical, one almost_same    -> promoted_match, select it
//  4. no identical, many almost_same   -> manual_review
//  5. otherwise                        -> no_match
func Consolidate(classified []domain.ClassifiedCandidate) domain.Decision {
	var identical []domain.ClassifiedCandidate
	var almostSame []domain.ClassifiedCandidate

	for _, c := range classified {
		switch c.Status {
		case domain.StatusIdentical:
			identical = append(identical, c)
		case domain.StatusAlmostSame:
			almostSame = append(almostSame, c)
		}
	}

	switch {
	case len(identical) == 1:
		selected := identical[0]
		return domain.Decision{
			Outcome:         domain.OutcomeAutoMatch,
			Selected:        &selected,
			SelectionMethod: domain.SelectionAutoMatch,
			Reason:          "single identical candidate",
		}
	case len(identical) > 1:
		return domain.Decision{
			Outcome: domain.OutcomeManualReview,
			Reason:  "multiple identical candidates",
		}
	case len(almostSame) == 1:
		// A lone near-match is accepted when nothing better exists.
		selected := almostSame[0]
		return domain.Decision{
			Outcome:         domain.OutcomePromotedMatch,
			Selected:        &selected,
			SelectionMethod: domain.SelectionPromotedMatch,
			Reason:          "single plausible candidate promoted",
		}
	case len(almostSame) > 1:
		return domain.Decision{
			Outcome: domain.OutcomeManualReview,
			Reason:  "multiple plausible candidates",
		}
	default:
		return domain.Decision{
			Outcome: domain.OutcomeNoMatch,
			Reason:  "no visually matching candidate",
		}
	}
}
