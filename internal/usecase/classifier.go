package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/shelfmatch/backend/internal/domain"
)

// ClassifierConfig holds configuration for the visual match classifier
type ClassifierConfig struct {
	SelectorConfidenceThreshold float64
	EnableDebugLogging          bool
}

// Classifier normalizes the external visual comparison service's output into
// three-tier classified candidates. It supports both call shapes: one binary
// comparison per candidate, and one multi-candidate selection call.
type Classifier struct {
	vision             domain.VisionClient
	selectorThreshold  float64
	enableDebugLogging bool
}

// NewClassifier creates a classifier over the given vision client
func NewClassifier(vision domain.VisionClient, config ClassifierConfig) *Classifier {
	threshold := config.SelectorConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	return &Classifier{
		vision:             vision,
		selectorThreshold:  threshold,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// ClassifyCandidates runs one binary comparison per candidate. A failed
// comparison degrades that candidate to not_match with the failure recorded
// as its reason - it never aborts the remaining candidates. Candidates
// without a usable reference image are classified not_match without calling
// the service. Only context cancellation stops the loop.
func (c *Classifier) ClassifyCandidates(ctx context.Context, det *domain.Detection, candidates []ScoredCandidate) ([]domain.ClassifiedCandidate, error) {
	classified := make([]domain.ClassifiedCandidate, 0, len(candidates))

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrVisualMatchUnavailable, err)
		}

		if candidate.ImageRef == "" {
			classified = append(classified, domain.ClassifiedCandidate{
				Candidate: candidate.Candidate,
				Status:    domain.StatusNotMatch,
				Reason:    "no usable reference image",
			})
			continue
		}

		result, err := c.vision.CompareProduct(ctx, domain.CompareRequest{
			CropRef:        det.CropRef,
			Region:         det.Region,
			CandidateKey:   candidate.CatalogKey,
			CandidateImage: candidate.ImageRef,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrVisualMatchUnavailable, ctxErr)
			}
			if c.enableDebugLogging {
				log.Printf("[CLASSIFY] %s degraded to not_match: %v", candidate.CatalogKey, err)
			}
			classified = append(classified, domain.ClassifiedCandidate{
				Candidate: candidate.Candidate,
				Status:    domain.StatusNotMatch,
				Reason:    fmt.Sprintf("comparison failed: %v", err),
			})
			continue
		}

		classified = append(classified, domain.ClassifiedCandidate{
			Candidate:  candidate.Candidate,
			Status:     result.Status,
			Confidence: result.Confidence,
			Similarity: result.Similarity,
			Reason:     result.Reason,
		})
	}

	return classified, nil
}

// SelectBest runs the single multi-candidate selector call. The service's
// one selection plus the confidence threshold replaces decision table rows
// 1-3: below threshold the selection downgrades to manual review, and an
// empty selection means no match. The returned classified list mirrors the
// selection for stage records.
func (c *Classifier) SelectBest(ctx context.Context, det *domain.Detection, candidates []ScoredCandidate) (domain.Decision, []domain.ClassifiedCandidate, error) {
	plain := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		plain = append(plain, candidate.Candidate)
	}

	result, err := c.vision.SelectProduct(ctx, domain.SelectRequest{
		CropRef:    det.CropRef,
		Region:     det.Region,
		Candidates: plain,
	})
	if err != nil {
		return domain.Decision{}, nil, err
	}

	confident := result.Confidence >= c.selectorThreshold

	classified := make([]domain.ClassifiedCandidate, 0, len(candidates))
	var selected *domain.ClassifiedCandidate
	for _, candidate := range candidates {
		cc := domain.ClassifiedCandidate{
			Candidate: candidate.Candidate,
			Status:    domain.StatusNotMatch,
			Reason:    "not selected",
		}
		if result.SelectedKey != "" && candidate.CatalogKey == result.SelectedKey {
			// The audit row mirrors the decision: a below-threshold choice
			// is recorded as a near match, not a confirmed one.
			cc.Status = domain.StatusAlmostSame
			if confident {
				cc.Status = domain.StatusIdentical
			}
			cc.Confidence = result.Confidence
			cc.Similarity = result.Confidence
			cc.Reason = result.Reasoning
			sel := cc
			selected = &sel
		}
		classified = append(classified, cc)
	}

	if c.enableDebugLogging {
		log.Printf("[CLASSIFY] selector chose %q with confidence %.2f (threshold %.2f)",
			result.SelectedKey, result.Confidence, c.selectorThreshold)
	}

	switch {
	case selected == nil:
		return domain.Decision{
			Outcome: domain.OutcomeNoMatch,
			Reason:  "selector chose no candidate",
		}, classified, nil
	case !confident:
		return domain.Decision{
			Outcome: domain.OutcomeManualReview,
			Reason: fmt.Sprintf("selector confidence %.2f below threshold %.2f",
				result.Confidence, c.selectorThreshold),
		}, classified, nil
	default:
		return domain.Decision{
			Outcome:         domain.OutcomeAutoMatch,
			Selected:        selected,
			SelectionMethod: domain.SelectionSelector,
			Reason:          result.Reasoning,
		}, classified, nil
	}
}
