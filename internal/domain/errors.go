package domain

import "errors"

var (
	// ErrSearchUnavailable is returned when the catalog search service cannot
	// be reached or answers with a transient failure. Retryable.
	ErrSearchUnavailable = errors.New("catalog search unavailable")

	// ErrSearchMisconfigured is returned when the catalog search client has no
	// usable credentials. Fatal, not retryable.
	ErrSearchMisconfigured = errors.New("catalog search misconfigured")

	// ErrVisualMatchUnavailable is returned when the visual comparison service
	// fails. At the candidate level this degrades to not_match; at the item
	// level it fails that item only.
	ErrVisualMatchUnavailable = errors.New("visual comparison unavailable")

	// ErrInvalidRegion is returned when a detection's bounding region is
	// malformed. The item fails, the batch continues.
	ErrInvalidRegion = errors.New("invalid detection region")

	// ErrStorageWriteFailed is returned when a stage record or outcome write
	// fails. Fatal for that item only.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrNoEligibleDetections is returned by the orchestrator before any
	// streaming begins when the scope holds zero eligible detections.
	ErrNoEligibleDetections = errors.New("no eligible detections in scope")

	// ErrDetectionNotFound is returned when a detection id is unknown.
	ErrDetectionNotFound = errors.New("detection not found")

	// ErrInvalidRequest is returned when request parameters are invalid.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)
