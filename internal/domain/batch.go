package domain

import "time"

// Item stages reported on the progress stream. Pipeline stages are followed
// by exactly one terminal stage per item.
const (
	ItemStageQueued        = "queued"
	ItemStageSearching     = "searching"
	ItemStagePrefiltering  = "prefiltering"
	ItemStageMatching      = "matching"
	ItemStageConsolidating = "consolidating"
	ItemStageSaved         = "saved"
	ItemStageManualReview  = "manual_review"
	ItemStageNoMatch       = "no_match"
	ItemStageFailed        = "failed"
	BatchStageCompleted    = "completed"
)

// BatchTotals is the cumulative counter snapshot embedded in every progress
// event. Processed is monotonically increasing across the batch.
type BatchTotals struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Success   int `json:"success"`
	NoMatch   int `json:"noMatch"`
	Errors    int `json:"errors"`
}

// ItemResult is the terminal record for one detection in a batch run.
type ItemResult struct {
	DetectionID  string        `json:"detectionId"`
	Outcome      Outcome       `json:"outcome,omitempty"`
	SelectedKey  string        `json:"selectedKey,omitempty"`
	SelectedName string        `json:"selectedName,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Failed reports whether the item terminated with an error rather than a
// pipeline outcome.
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// ProgressEvent is one entry on the unidirectional batch progress stream.
// Events for a given detection arrive in stage order; events from different
// detections may interleave. The final event carries Stage=completed and the
// full result list, and is emitted exactly once.
type ProgressEvent struct {
	BatchID     string       `json:"batchId"`
	DetectionID string       `json:"detectionId,omitempty"`
	Stage       string       `json:"stage"`
	Message     string       `json:"message"`
	Totals      BatchTotals  `json:"totals"`
	Results     []ItemResult `json:"results,omitempty"`
}
