package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfmatch/backend/internal/domain"
)

// fakeVision scripts per-candidate comparison results and a selection result.
type fakeVision struct {
	compareResults map[string]*domain.CompareResult
	compareErrs    map[string]error
	selectResult   *domain.SelectResult
	selectErr      error
	compareCalls   []string
}

func (f *fakeVision) CompareProduct(ctx context.Context, req domain.CompareRequest) (*domain.CompareResult, error) {
	f.compareCalls = append(f.compareCalls, req.CandidateKey)
	if err := f.compareErrs[req.CandidateKey]; err != nil {
		return nil, err
	}
	if res := f.compareResults[req.CandidateKey]; res != nil {
		return res, nil
	}
	return &domain.CompareResult{Status: domain.StatusNotMatch}, nil
}

func (f *fakeVision) SelectProduct(ctx context.Context, req domain.SelectRequest) (*domain.SelectResult, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.selectResult, nil
}

func scoredCandidates(keys ...string) []ScoredCandidate {
	candidates := make([]ScoredCandidate, 0, len(keys))
	for _, key := range keys {
		candidates = append(candidates, ScoredCandidate{
			Candidate: domain.Candidate{CatalogKey: key, Name: "Product " + key, ImageRef: "img-" + key},
		})
	}
	return candidates
}

func TestClassifyCandidates(t *testing.T) {
	det := &domain.Detection{ID: "d1", CropRef: "crop-1", Region: domain.Region{X2: 100, Y2: 100}}
	ctx := context.Background()

	t.Run("maps service results onto candidates", func(t *testing.T) {
		vision := &fakeVision{compareResults: map[string]*domain.CompareResult{
			"a": {Status: domain.StatusIdentical, Confidence: 0.95, Similarity: 0.97},
			"b": {Status: domain.StatusAlmostSame, Confidence: 0.7, Similarity: 0.8},
		}}
		c := NewClassifier(vision, ClassifierConfig{})

		got, err := c.ClassifyCandidates(ctx, det, scoredCandidates("a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Status != domain.StatusIdentical || got[0].Confidence != 0.95 {
			t.Errorf("got[0] = %+v, want identical/0.95", got[0])
		}
		if got[1].Status != domain.StatusAlmostSame {
			t.Errorf("got[1].Status = %s, want almost_same", got[1].Status)
		}
	})

	t.Run("missing reference image skips the service call", func(t *testing.T) {
		vision := &fakeVision{}
		c := NewClassifier(vision, ClassifierConfig{})

		candidates := scoredCandidates("a")
		candidates[0].ImageRef = ""

		got, err := c.ClassifyCandidates(ctx, det, candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[0].Status != domain.StatusNotMatch {
			t.Errorf("Status = %s, want not_match", got[0].Status)
		}
		if got[0].Reason != "no usable reference image" {
			t.Errorf("Reason = %q", got[0].Reason)
		}
		if len(vision.compareCalls) != 0 {
			t.Errorf("compare calls = %v, want none", vision.compareCalls)
		}
	})

	t.Run("comparison failure degrades that candidate only", func(t *testing.T) {
		vision := &fakeVision{
			compareResults: map[string]*domain.CompareResult{
				"b": {Status: domain.StatusIdentical, Confidence: 0.9, Similarity: 0.9},
			},
			compareErrs: map[string]error{
				"a": domain.ErrVisualMatchUnavailable,
			},
		}
		c := NewClassifier(vision, ClassifierConfig{})

		got, err := c.ClassifyCandidates(ctx, det, scoredCandidates("a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[0].Status != domain.StatusNotMatch {
			t.Errorf("failed candidate Status = %s, want not_match", got[0].Status)
		}
		if got[0].Reason == "" {
			t.Error("failed candidate should record a reason")
		}
		if got[1].Status != domain.StatusIdentical {
			t.Errorf("healthy candidate Status = %s, want identical", got[1].Status)
		}
	})

	t.Run("cancellation stops the loop", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		vision := &fakeVision{}
		c := NewClassifier(vision, ClassifierConfig{})

		_, err := c.ClassifyCandidates(cancelled, det, scoredCandidates("a", "b"))
		if !errors.Is(err, domain.ErrVisualMatchUnavailable) {
			t.Errorf("error = %v, want ErrVisualMatchUnavailable", err)
		}
		if len(vision.compareCalls) != 0 {
			t.Errorf("compare calls = %v, want none after cancellation", vision.compareCalls)
		}
	})
}

func TestSelectBest(t *testing.T) {
	det := &domain.Detection{ID: "d1", CropRef: "crop-1", Region: domain.Region{X2: 100, Y2: 100}}
	ctx := context.Background()

	t.Run("confident selection auto-matches", func(t *testing.T) {
		vision := &fakeVision{selectResult: &domain.SelectResult{
			SelectedKey: "b", Confidence: 0.9, Reasoning: "same label layout",
		}}
		c := NewClassifier(vision, ClassifierConfig{SelectorConfidenceThreshold: 0.6})

		decision, classified, err := c.SelectBest(ctx, det, scoredCandidates("a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Outcome != domain.OutcomeAutoMatch {
			t.Errorf("Outcome = %v, want auto_match", decision.Outcome)
		}
		if decision.Selected == nil || decision.Selected.CatalogKey != "b" {
			t.Errorf("Selected = %+v, want candidate b", decision.Selected)
		}
		if decision.SelectionMethod != domain.SelectionSelector {
			t.Errorf("SelectionMethod = %s, want selector", decision.SelectionMethod)
		}
		if len(classified) != 2 {
			t.Fatalf("classified len = %d, want 2", len(classified))
		}
		if classified[0].Status != domain.StatusNotMatch || classified[1].Status != domain.StatusIdentical {
			t.Errorf("classified statuses = %s, %s", classified[0].Status, classified[1].Status)
		}
	})

	t.Run("low confidence downgrades to manual review", func(t *testing.T) {
		vision := &fakeVision{selectResult: &domain.SelectResult{SelectedKey: "a", Confidence: 0.4}}
		c := NewClassifier(vision, ClassifierConfig{SelectorConfidenceThreshold: 0.6})

		decision, classified, err := c.SelectBest(ctx, det, scoredCandidates("a"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Outcome != domain.OutcomeManualReview {
			t.Errorf("Outcome = %v, want manual_review", decision.Outcome)
		}
		if decision.Selected != nil {
			t.Errorf("Selected = %+v, want nil", decision.Selected)
		}
		// The audit record must not overstate a downgraded choice
		if len(classified) != 1 || classified[0].Status != domain.StatusAlmostSame {
			t.Errorf("classified = %+v, want almost_same for the below-threshold choice", classified)
		}
	})

	t.Run("empty selection means no match", func(t *testing.T) {
		vision := &fakeVision{selectResult: &domain.SelectResult{SelectedKey: "", Confidence: 0.9}}
		c := NewClassifier(vision, ClassifierConfig{})

		decision, _, err := c.SelectBest(ctx, det, scoredCandidates("a"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Outcome != domain.OutcomeNoMatch {
			t.Errorf("Outcome = %v, want no_match", decision.Outcome)
		}
	})

	t.Run("service failure propagates", func(t *testing.T) {
		vision := &fakeVision{selectErr: domain.ErrVisualMatchUnavailable}
		c := NewClassifier(vision, ClassifierConfig{})

		_, _, err := c.SelectBest(ctx, det, scoredCandidates("a"))
		if !errors.Is(err, domain.ErrVisualMatchUnavailable) {
			t.Errorf("error = %v, want ErrVisualMatchUnavailable", err)
		}
	})
}
