package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shelfmatch/backend/internal/domain"
)

// ProgressFunc receives per-item stage transitions during a pipeline run.
type ProgressFunc func(stage, message string)

// MatchServiceConfig holds configuration for the match pipeline
type MatchServiceConfig struct {
	CacheEnabled       bool
	CacheTTL           time.Duration
	StoreHint          string
	VisionMode         string // "compare" or "select"
	ItemBudget         time.Duration
	EnableDebugLogging bool
}

// MatchService drives one detection through the full pipeline:
// search -> pre-filter -> visual match -> consolidation -> persistence.
// Every stage writes its candidate set to the stage store so the funnel can
// be audited afterwards.
type MatchService struct {
	catalog    domain.CatalogClient
	classifier *Classifier
	prefilter  *PreFilter
	detections domain.DetectionStore
	stages     domain.StageStore
	cache      domain.CacheRepository

	cacheEnabled       bool
	cacheTTL           time.Duration
	storeHint          string
	visionMode         string
	itemBudget         time.Duration
	enableDebugLogging bool
}

// NewMatchService creates a match service with dependencies
func NewMatchService(
	catalog domain.CatalogClient,
	classifier *Classifier,
	prefilter *PreFilter,
	detections domain.DetectionStore,
	stages domain.StageStore,
	cache domain.CacheRepository,
	config MatchServiceConfig,
) *MatchService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	visionMode := config.VisionMode
	if visionMode == "" {
		visionMode = "compare"
	}

	itemBudget := config.ItemBudget
	if itemBudget == 0 {
		itemBudget = 120 * time.Second
	}

	return &MatchService{
		catalog:            catalog,
		classifier:         classifier,
		prefilter:          prefilter,
		detections:         detections,
		stages:             stages,
		cache:              cache,
		cacheEnabled:       config.CacheEnabled && cache != nil,
		cacheTTL:           cacheTTL,
		storeHint:          config.StoreHint,
		visionMode:         visionMode,
		itemBudget:         itemBudget,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// MatchDetection runs the pipeline for a single detection under its wall
// clock budget. report may be nil. Stage failures surface as errors for this
// item only; the caller decides whether other items continue.
func (s *MatchService) MatchDetection(ctx context.Context, det *domain.Detection, report ProgressFunc) (*domain.ItemResult, error) {
	start := time.Now()
	if report == nil {
		report = func(string, string) {}
	}

	if det == nil || det.ID == "" {
		return nil, domain.ErrInvalidRequest
	}
	if !det.FullyAnalyzed {
		return nil, fmt.Errorf("%w: detection %s has no extracted attributes", domain.ErrInvalidRequest, det.ID)
	}
	if !det.Region.Valid() {
		return nil, fmt.Errorf("%w: detection %s", domain.ErrInvalidRegion, det.ID)
	}

	if s.itemBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemBudget)
		defer cancel()
	}

	// Stage 1: catalog search
	report(domain.ItemStageSearching, "searching catalog")
	candidates, err := s.searchWithCache(ctx, det)
	if err != nil {
		return nil, budgetExceededAs(err, domain.ErrSearchUnavailable)
	}

	if err := s.stages.UpsertStageRecords(ctx, searchStageRecords(det.ID, candidates)); err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		decision := domain.Decision{Outcome: domain.OutcomeNoMatch, Reason: "search returned no candidates"}
		return s.finish(ctx, det, decision, start)
	}

	// Stage 2: pre-filter
	report(domain.ItemStagePrefiltering, fmt.Sprintf("pre-filtering %d candidates", len(candidates)))
	narrowed := s.prefilter.Narrow(det, candidates, s.storeHint)

	if err := s.stages.UpsertStageRecords(ctx, prefilterStageRecords(det.ID, narrowed)); err != nil {
		return nil, err
	}

	if len(narrowed) == 0 {
		decision := domain.Decision{Outcome: domain.OutcomeNoMatch, Reason: "no candidate passed pre-filter"}
		return s.finish(ctx, det, decision, start)
	}

	// Stage 3: visual match + consolidation
	report(domain.ItemStageMatching, fmt.Sprintf("visually comparing %d candidates", len(narrowed)))

	var decision domain.Decision
	var classified []domain.ClassifiedCandidate

	if s.visionMode == "select" {
		decision, classified, err = s.classifier.SelectBest(ctx, det, narrowed)
		if err != nil {
			return nil, budgetExceededAs(err, domain.ErrVisualMatchUnavailable)
		}
		report(domain.ItemStageConsolidating, "applying selector decision")
	} else {
		classified, err = s.classifier.ClassifyCandidates(ctx, det, narrowed)
		if err != nil {
			return nil, budgetExceededAs(err, domain.ErrVisualMatchUnavailable)
		}
		report(domain.ItemStageConsolidating, "consolidating classified candidates")
		decision = Consolidate(classified)
	}

	if err := s.stages.UpsertStageRecords(ctx, visualStageRecords(det.ID, classified)); err != nil {
		return nil, err
	}

	return s.finish(ctx, det, decision, start)
}

// finish writes the terminal outcome and builds the item result. A match
// overwrites any previous selection; a non-match clears a stale one so the
// detection never keeps a selection its latest run didn't confirm.
// Terminal progress events belong to the orchestrator, which emits them
// after updating the batch counters.
func (s *MatchService) finish(ctx context.Context, det *domain.Detection, decision domain.Decision, start time.Time) (*domain.ItemResult, error) {
	result := &domain.ItemResult{
		DetectionID: det.ID,
		Outcome:     decision.Outcome,
	}

	switch decision.Outcome {
	case domain.OutcomeAutoMatch, domain.OutcomePromotedMatch:
		selected := &domain.SelectedCandidate{
			CatalogKey:      decision.Selected.CatalogKey,
			Name:            decision.Selected.Name,
			Brand:           decision.Selected.Brand,
			Category:        decision.Selected.Category,
			ImageRef:        decision.Selected.ImageRef,
			SelectionMethod: decision.SelectionMethod,
			MatchedAt:       time.Now(),
		}
		if err := s.detections.SaveOutcome(ctx, det.ID, selected); err != nil {
			return nil, err
		}
		result.SelectedKey = selected.CatalogKey
		result.SelectedName = selected.Name

	default:
		if err := s.clearStaleOutcome(ctx, det); err != nil {
			return nil, err
		}
	}

	if s.enableDebugLogging {
		log.Printf("[PIPELINE] %s -> %s (%s) in %s", det.ID, decision.Outcome, decision.Reason, time.Since(start))
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *MatchService) clearStaleOutcome(ctx context.Context, det *domain.Detection) error {
	if det.Selected == nil {
		return nil
	}
	return s.detections.SaveOutcome(ctx, det.ID, nil)
}

// searchWithCache queries the catalog, short-circuiting through the cache
// for detections with identical normalized attributes.
func (s *MatchService) searchWithCache(ctx context.Context, det *domain.Detection) ([]domain.Candidate, error) {
	query := domain.QueryFromDetection(det, s.storeHint)

	cacheKey := fmt.Sprintf("search:%s:%s:%s",
		normalizeAttribute(query.Brand),
		normalizeAttribute(query.ProductName),
		normalizeAttribute(query.Size))

	if s.cacheEnabled {
		if value, err := s.cache.Get(ctx, cacheKey); err == nil {
			if cached, ok := value.([]domain.Candidate); ok {
				if s.enableDebugLogging {
					log.Printf("[PIPELINE] cache hit for %s (%d candidates)", det.ID, len(cached))
				}
				return cached, nil
			}
		}
	}

	candidates, err := s.catalog.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		if err := s.cache.Set(ctx, cacheKey, candidates, s.cacheTTL); err != nil && s.enableDebugLogging {
			log.Printf("[PIPELINE] cache set failed for %s: %v", det.ID, err)
		}
	}

	return candidates, nil
}

// budgetExceededAs converts a stage deadline overrun into the stage's
// retryable sentinel so a slow external call fails this item instead of
// hanging the batch.
func budgetExceededAs(err, sentinel error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, sentinel) {
		return fmt.Errorf("%w: stage budget exceeded: %v", sentinel, err)
	}
	return err
}

func searchStageRecords(detectionID string, candidates []domain.Candidate) []domain.StageRecord {
	records := make([]domain.StageRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, domain.StageRecord{
			DetectionID:  detectionID,
			CandidateKey: c.CatalogKey,
			Stage:        domain.StageSearch,
			Name:         c.Name,
			Brand:        c.Brand,
			Size:         c.Size,
			Category:     c.Category,
			ImageRef:     c.ImageRef,
			Raw:          c.Raw,
		})
	}
	return records
}

func prefilterStageRecords(detectionID string, scored []ScoredCandidate) []domain.StageRecord {
	records := make([]domain.StageRecord, 0, len(scored))
	for _, c := range scored {
		records = append(records, domain.StageRecord{
			DetectionID:  detectionID,
			CandidateKey: c.CatalogKey,
			Stage:        domain.StagePreFilter,
			Name:         c.Name,
			Brand:        c.Brand,
			Size:         c.Size,
			Category:     c.Category,
			ImageRef:     c.ImageRef,
			Raw:          c.Raw,
		})
	}
	return records
}

func visualStageRecords(detectionID string, classified []domain.ClassifiedCandidate) []domain.StageRecord {
	records := make([]domain.StageRecord, 0, len(classified))
	for _, c := range classified {
		status := c.Status
		confidence := c.Confidence
		similarity := c.Similarity
		records = append(records, domain.StageRecord{
			DetectionID:  detectionID,
			CandidateKey: c.CatalogKey,
			Stage:        domain.StageVisualMatch,
			Name:         c.Name,
			Brand:        c.Brand,
			Size:         c.Size,
			Category:     c.Category,
			ImageRef:     c.ImageRef,
			Raw:          c.Raw,
			Status:       &status,
			Confidence:   &confidence,
			Similarity:   &similarity,
			Reason:       c.Reason,
		})
	}
	return records
}
