package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"justicebench/internal/shared/metrics"
	"justicebench/internal/shared/telemetry"
)

// DefaultMaxWorkers caps concurrent items per batch.
const DefaultMaxWorkers = 50

// Pool runs batches on a bounded set of executors per batch and records
// their progress in a Registry.
type Pool struct {
	registry   *Registry
	maxWorkers int
	sink       ResultSink
	inflight   sync.WaitGroup
}

// NewPool returns a pool writing to registry. maxWorkers <= 0 uses
// DefaultMaxWorkers.
func NewPool(registry *Registry, maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Pool{registry: registry, maxWorkers: maxWorkers}
}

// Registry returns the registry the pool writes to.
func (p *Pool) Registry() *Registry {
	return p.registry
}

// SetResultSink makes the pool hand every successful result to sink. It must
// be called before the first Submit.
func (p *Pool) SetResultSink(sink ResultSink) {
	p.sink = sink
}

// Submit validates itemIDs, registers a pending task and starts the batch in
// the background. It returns the task ID without waiting for any item.
// The batch keeps running after ctx is cancelled.
func (p *Pool) Submit(ctx context.Context, itemIDs []string, capability Capability) (string, error) {
	if capability == nil {
		return "", ErrNilCapability
	}
	items, err := ValidateItems(itemIDs)
	if err != nil {
		return "", err
	}

	taskID := uuid.NewString()
	p.registry.create(taskID, len(items))
	metrics.IncBatchSubmitted()
	telemetry.Info("batch.submitted", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"task_id":    taskID,
		"total":      len(items),
		"workers":    p.workerCount(len(items)),
	})

	p.inflight.Add(1)
	go p.run(telemetry.Detach(ctx), taskID, items, capability)
	return taskID, nil
}

// Wait blocks until every submitted batch has reached a terminal status.
func (p *Pool) Wait() {
	p.inflight.Wait()
}

func (p *Pool) workerCount(n int) int {
	if n < p.maxWorkers {
		return n
	}
	return p.maxWorkers
}

// ValidateItems trims item IDs and rejects empty submissions, blank IDs and
// duplicates.
func ValidateItems(itemIDs []string) ([]string, error) {
	if len(itemIDs) == 0 {
		return nil, ErrEmptySubmission
	}
	seen := make(map[string]struct{}, len(itemIDs))
	items := make([]string, 0, len(itemIDs))
	for i, raw := range itemIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: item %d is blank", ErrMalformedItem, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q appears more than once", ErrMalformedItem, id)
		}
		seen[id] = struct{}{}
		items = append(items, id)
	}
	return items, nil
}

func (p *Pool) run(ctx context.Context, taskID string, items []string, capability Capability) {
	defer p.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			p.failBatch(ctx, taskID, fmt.Sprintf("dispatcher panic: %v", rec))
			telemetry.Error("batch.panic", map[string]any{
				"request_id": telemetry.RequestID(ctx),
				"task_id":    taskID,
				"stack":      string(debug.Stack()),
			})
		}
	}()

	if prep, ok := capability.(Preparer); ok {
		if err := prep.Prepare(ctx, items); err != nil {
			p.failBatch(ctx, taskID, err.Error())
			return
		}
	}
	if err := p.registry.start(taskID); err != nil {
		telemetry.Error("batch.start_failed", map[string]any{"task_id": taskID, "error": err.Error()})
		return
	}
	logStatus(ctx, taskID, StatusPending, StatusRunning)

	jobs := make(chan string)
	var executors sync.WaitGroup
	for i := 0; i < p.workerCount(len(items)); i++ {
		executors.Add(1)
		go func() {
			defer executors.Done()
			for itemID := range jobs {
				p.runItem(ctx, taskID, itemID, capability)
			}
		}()
	}
	for _, itemID := range items {
		jobs <- itemID
	}
	close(jobs)
	executors.Wait()

	if err := p.registry.finish(taskID); err != nil {
		telemetry.Error("batch.finish_failed", map[string]any{"task_id": taskID, "error": err.Error()})
		return
	}
	logStatus(ctx, taskID, StatusRunning, StatusCompleted)
}

func (p *Pool) runItem(ctx context.Context, taskID, itemID string, capability Capability) {
	start := time.Now()
	result, err := runSafely(ctx, capability, itemID)
	metrics.ObserveItemDurationMs(float64(time.Since(start).Milliseconds()))

	if err != nil {
		itemErr := ItemError{ItemID: itemID, Message: err.Error()}
		var failure *ItemFailure
		if errors.As(err, &failure) {
			itemErr.ItemTitle = failure.Title
			if failure.Err != nil {
				itemErr.Message = failure.Err.Error()
			}
		}
		if recErr := p.registry.recordFailure(taskID, itemErr); recErr != nil {
			telemetry.Error("batch.record_failed", map[string]any{"task_id": taskID, "item_id": itemID, "error": recErr.Error()})
			return
		}
		metrics.IncItemFailed()
		telemetry.Warn("batch.item.failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"task_id":    taskID,
			"item_id":    itemID,
			"error":      itemErr.Message,
		})
		return
	}

	result.ItemID = itemID
	if recErr := p.registry.recordSuccess(taskID, result); recErr != nil {
		telemetry.Error("batch.record_failed", map[string]any{"task_id": taskID, "item_id": itemID, "error": recErr.Error()})
		return
	}
	metrics.IncItemSucceeded()
	if p.sink != nil {
		p.sink.RecordResult(ctx, taskID, result)
	}
}

func runSafely(ctx context.Context, capability Capability, itemID string) (result ItemResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return capability.Run(ctx, itemID)
}

func (p *Pool) failBatch(ctx context.Context, taskID, reason string) {
	if err := p.registry.fail(taskID, reason); err != nil {
		telemetry.Error("batch.fail_failed", map[string]any{"task_id": taskID, "error": err.Error()})
		return
	}
	metrics.IncBatchFailed()
	telemetry.Error("batch.failed", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"task_id":    taskID,
		"reason":     reason,
	})
}

func logStatus(ctx context.Context, taskID string, from, to Status) {
	telemetry.Info("batch.status", map[string]any{
		"request_id":        telemetry.RequestID(ctx),
		"task_id":           taskID,
		"status_transition": string(from) + "->" + string(to),
	})
}
