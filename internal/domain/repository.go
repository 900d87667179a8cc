package domain

import (
	"context"
	"time"
)

// CatalogClient defines the interface for the external candidate search
// service. An empty candidate list is a valid, non-error result.
type CatalogClient interface {
	SearchProducts(ctx context.Context, query SearchQuery) ([]Candidate, error)
}

// CompareRequest asks the visual comparison service whether one candidate's
// reference image depicts the same product as the detection crop.
type CompareRequest struct {
	CropRef        string `json:"cropRef"`
	Region         Region `json:"region"`
	CandidateKey   string `json:"candidateKey"`
	CandidateImage string `json:"candidateImage"`
}

// CompareResult is the per-candidate answer from the comparison service.
type CompareResult struct {
	Status     MatchStatus `json:"status"`
	Confidence float64     `json:"confidence"`
	Similarity float64     `json:"similarity"`
	Reason     string      `json:"reason,omitempty"`
}

// SelectRequest hands the comparison service the full candidate set and asks
// for a single selection.
type SelectRequest struct {
	CropRef    string      `json:"cropRef"`
	Region     Region      `json:"region"`
	Candidates []Candidate `json:"candidates"`
}

// SelectResult is the single-selection answer. An empty SelectedKey means the
// service selected nothing.
type SelectResult struct {
	SelectedKey string  `json:"selectedKey"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// VisionClient defines the interface for the external visual comparison
// service in both supported call shapes.
type VisionClient interface {
	CompareProduct(ctx context.Context, req CompareRequest) (*CompareResult, error)
	SelectProduct(ctx context.Context, req SelectRequest) (*SelectResult, error)
}

// StageStore persists candidate audit rows per pipeline stage. Upserts are
// keyed on (detection id, candidate key, stage) so re-running a stage never
// duplicates rows; a bulk write is all-or-nothing.
type StageStore interface {
	UpsertStageRecords(ctx context.Context, records []StageRecord) error
	FunnelForDetection(ctx context.Context, detectionID string) (*Funnel, error)
}

// DetectionStore reads detections and writes terminal outcomes.
type DetectionStore interface {
	GetByID(ctx context.Context, id string) (*Detection, error)
	ListEligibleByImage(ctx context.Context, imageID string) ([]Detection, error)
	ListEligibleByProject(ctx context.Context, projectID string) ([]Detection, error)
	// SaveOutcome overwrites the detection's selected candidate. A nil
	// selection clears a previous outcome.
	SaveOutcome(ctx context.Context, detectionID string, selected *SelectedCandidate) error
}

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
