package domain

import (
	"encoding/json"
	"time"
)

// MatchStatus is the three-tier visual classification of a candidate.
type MatchStatus string

const (
	StatusIdentical  MatchStatus = "identical"
	StatusAlmostSame MatchStatus = "almost_same"
	StatusNotMatch   MatchStatus = "not_match"
)

// Outcome is the terminal decision for a detection.
type Outcome string

const (
	OutcomeAutoMatch     Outcome = "auto_match"
	OutcomePromotedMatch Outcome = "promoted_match"
	OutcomeManualReview  Outcome = "manual_review"
	OutcomeNoMatch       Outcome = "no_match"
)

// Selection methods recorded on the detection alongside the outcome.
const (
	SelectionAutoMatch     = "auto_match"
	SelectionPromotedMatch = "promoted_match"
	SelectionSelector      = "selector"
)

// ClassifiedCandidate is a candidate after visual comparison.
type ClassifiedCandidate struct {
	Candidate
	Status     MatchStatus `json:"status"`
	Confidence float64     `json:"confidence"` // 0-1
	Similarity float64     `json:"similarity"` // 0-1
	Reason     string      `json:"reason,omitempty"`
}

// Decision is the consolidated result over a classified candidate set.
type Decision struct {
	Outcome         Outcome              `json:"outcome"`
	Selected        *ClassifiedCandidate `json:"selected,omitempty"`
	SelectionMethod string               `json:"selectionMethod,omitempty"`
	Reason          string               `json:"reason,omitempty"`
}

// Stage identifies a pipeline stage for audit records.
type Stage string

const (
	StageSearch      Stage = "search"
	StagePreFilter   Stage = "pre_filter"
	StageVisualMatch Stage = "visual_match"
)

// Stages lists the pipeline stages in funnel order.
func Stages() []Stage {
	return []Stage{StageSearch, StagePreFilter, StageVisualMatch}
}

// StageRecord is the persisted audit row for one candidate at one pipeline
// stage. At most one record exists per (detection, candidate key, stage);
// re-running a stage updates the existing row. Match fields are nil for
// stages before visual_match.
type StageRecord struct {
	DetectionID  string          `json:"detectionId"`
	CandidateKey string          `json:"candidateKey"`
	Stage        Stage           `json:"stage"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand,omitempty"`
	Size         string          `json:"size,omitempty"`
	Category     string          `json:"category,omitempty"`
	ImageRef     string          `json:"imageRef,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
	Status       *MatchStatus    `json:"status,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Similarity   *float64        `json:"similarity,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Funnel summarizes the audit trail for one detection: how many candidates
// survived each stage, with the underlying records.
type Funnel struct {
	DetectionID string                  `json:"detectionId"`
	Counts      map[Stage]int           `json:"counts"`
	Records     map[Stage][]StageRecord `json:"records"`
}
