package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shelfmatch/backend/internal/domain"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ItemRunner runs the match pipeline for one detection. Satisfied by
// MatchService; tests substitute their own.
type ItemRunner interface {
	MatchDetection(ctx context.Context, det *domain.Detection, report ProgressFunc) (*domain.ItemResult, error)
}

// OrchestratorConfig holds configuration for batch orchestration
type OrchestratorConfig struct {
	Window             int           // max simultaneously in-flight items
	MaxWindow          int           // hard cap on caller overrides
	SubBatchSize       int           // items admitted between throttle pauses
	SubBatchInterval   time.Duration // minimum spacing between sub-batches
	EnableDebugLogging bool
}

// RunOptions are per-call orchestration overrides.
type RunOptions struct {
	// Concurrency overrides the configured window when > 0, clamped to the
	// configured maximum.
	Concurrency int
	BatchID     string
}

// Orchestrator drives many detections through the pipeline under a rolling
// concurrency window: at most N items in flight, admitted in throttled
// sub-batches, with the next queued item entering as soon as a slot frees.
// One failing item never blocks the rest of the batch.
type Orchestrator struct {
	runner             ItemRunner
	window             int
	maxWindow          int
	subBatchSize       int
	subBatchInterval   time.Duration
	enableDebugLogging bool
}

// NewOrchestrator creates a batch orchestrator over the given item runner
func NewOrchestrator(runner ItemRunner, config OrchestratorConfig) *Orchestrator {
	window := config.Window
	if window <= 0 {
		window = 25
	}

	maxWindow := config.MaxWindow
	if maxWindow <= 0 {
		maxWindow = 200
	}
	if window > maxWindow {
		window = maxWindow
	}

	subBatchSize := config.SubBatchSize
	if subBatchSize <= 0 {
		subBatchSize = 10
	}

	subBatchInterval := config.SubBatchInterval
	if subBatchInterval <= 0 {
		subBatchInterval = time.Second
	}

	return &Orchestrator{
		runner:             runner,
		window:             window,
		maxWindow:          maxWindow,
		subBatchSize:       subBatchSize,
		subBatchInterval:   subBatchInterval,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Run processes the detections and returns the progress stream. It fails
// before any streaming begins when the queue is empty. The stream terminates
// exactly once with a completion event carrying the per-item results, then
// closes. Cancelling ctx stops admitting new items and lets in-flight items
// drain.
func (o *Orchestrator) Run(ctx context.Context, detections []domain.Detection, opts RunOptions) (<-chan domain.ProgressEvent, error) {
	if len(detections) == 0 {
		return nil, domain.ErrNoEligibleDetections
	}

	window := o.window
	if opts.Concurrency > 0 {
		window = opts.Concurrency
		if window > o.maxWindow {
			window = o.maxWindow
		}
	}

	batchID := opts.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	run := &batchRun{
		batchID: batchID,
		total:   len(detections),
		events:  make(chan domain.ProgressEvent, 64),
		results: make([]*domain.ItemResult, len(detections)),
	}

	if o.enableDebugLogging {
		log.Printf("[BATCH] %s starting: %d detections, window=%d, sub-batch=%d/%s",
			batchID, len(detections), window, o.subBatchSize, o.subBatchInterval)
	}

	go o.process(ctx, detections, window, run)

	return run.events, nil
}

// batchRun is the in-memory aggregate for one orchestration call. Counters
// are atomics so workers update them without a shared lock; events embed a
// snapshot taken at emission time.
type batchRun struct {
	batchID   string
	total     int
	events    chan domain.ProgressEvent
	processed atomic.Int64
	success   atomic.Int64
	noMatch   atomic.Int64
	errors    atomic.Int64

	// emitMu serializes the totals snapshot with the channel send. Without
	// it a worker can snapshot, lose the CPU while another worker sends a
	// newer snapshot, then send its stale one - and the processed count
	// observed by consumers would go backwards.
	emitMu sync.Mutex

	mu      sync.Mutex
	results []*domain.ItemResult
}

func (r *batchRun) totals() domain.BatchTotals {
	return domain.BatchTotals{
		Total:     r.total,
		Processed: int(r.processed.Load()),
		Success:   int(r.success.Load()),
		NoMatch:   int(r.noMatch.Load()),
		Errors:    int(r.errors.Load()),
	}
}

// emit sends an event without blocking past cancellation: when the consumer
// is gone the event is dropped rather than wedging a worker.
func (r *batchRun) emit(ctx context.Context, detectionID, stage, message string) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	event := domain.ProgressEvent{
		BatchID:     r.batchID,
		DetectionID: detectionID,
		Stage:       stage,
		Message:     message,
		Totals:      r.totals(),
	}
	select {
	case r.events <- event:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) process(ctx context.Context, detections []domain.Detection, window int, run *batchRun) {
	sem := semaphore.NewWeighted(int64(window))
	throttle := rate.NewLimiter(rate.Every(o.subBatchInterval), 1)
	var wg sync.WaitGroup

admission:
	for i := range detections {
		// Inter-sub-batch pause keeps the burst rate within what the search
		// service tolerates; within a sub-batch, admission is immediate as
		// window slots free up.
		if i > 0 && i%o.subBatchSize == 0 {
			if err := throttle.Wait(ctx); err != nil {
				break admission
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			break admission
		}

		det := detections[i]
		idx := i
		run.emit(ctx, det.ID, domain.ItemStageQueued, "queued for matching")

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			o.runItem(ctx, &det, idx, run)
		}()
	}

	wg.Wait()

	// Completion event: emitted exactly once, carries the full result list
	// in input order (admitted items only).
	run.emitMu.Lock()
	final := domain.ProgressEvent{
		BatchID: run.batchID,
		Stage:   domain.BatchStageCompleted,
		Totals:  run.totals(),
		Results: run.collectResults(),
	}
	final.Message = fmt.Sprintf("batch complete: %d/%d processed, %d matched, %d no match, %d errors",
		final.Totals.Processed, final.Totals.Total, final.Totals.Success, final.Totals.NoMatch, final.Totals.Errors)

	// A cancelled batch still terminates with the completion event as long as
	// a consumer is draining: try the buffered send first, and give up only
	// when the buffer is full and the context is gone.
	select {
	case run.events <- final:
	default:
		select {
		case run.events <- final:
		case <-ctx.Done():
		}
	}
	run.emitMu.Unlock()
	close(run.events)

	if o.enableDebugLogging {
		log.Printf("[BATCH] %s %s", run.batchID, final.Message)
	}
}

// runItem executes one detection and records its terminal state. Pipeline
// errors are captured into the item's result - they never escape to abort
// the batch.
func (o *Orchestrator) runItem(ctx context.Context, det *domain.Detection, idx int, run *batchRun) {
	start := time.Now()

	result, err := o.runner.MatchDetection(ctx, det, func(stage, message string) {
		run.emit(ctx, det.ID, stage, message)
	})

	if err != nil {
		result = &domain.ItemResult{
			DetectionID: det.ID,
			Error:       err.Error(),
			Duration:    time.Since(start),
		}
		run.errors.Add(1)
		run.processed.Add(1)
		run.setResult(idx, result)
		run.emit(ctx, det.ID, domain.ItemStageFailed, err.Error())

		if o.enableDebugLogging {
			log.Printf("[BATCH] %s item %s failed: %v", run.batchID, det.ID, err)
		}
		return
	}

	var stage, message string
	switch result.Outcome {
	case domain.OutcomeAutoMatch, domain.OutcomePromotedMatch:
		run.success.Add(1)
		stage = domain.ItemStageSaved
		message = fmt.Sprintf("matched %s (%s)", result.SelectedName, result.Outcome)
	case domain.OutcomeManualReview:
		stage = domain.ItemStageManualReview
		message = "ambiguous candidates - routed to manual review"
	default:
		run.noMatch.Add(1)
		stage = domain.ItemStageNoMatch
		message = "no matching candidate"
	}
	run.processed.Add(1)
	run.setResult(idx, result)
	run.emit(ctx, det.ID, stage, message)
}

func (r *batchRun) setResult(idx int, result *domain.ItemResult) {
	r.mu.Lock()
	r.results[idx] = result
	r.mu.Unlock()
}

func (r *batchRun) collectResults() []domain.ItemResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	collected := make([]domain.ItemResult, 0, len(r.results))
	for _, res := range r.results {
		if res != nil {
			collected = append(collected, *res)
		}
	}
	return collected
}
