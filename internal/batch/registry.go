package batch

import (
	"context"
	"sync"
	"time"

	"justicebench/internal/shared/telemetry"
)

// Registry owns every batch task. All reads and writes go through its mutex.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

func (r *Registry) create(id string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = &Task{
		ID:        id,
		Status:    StatusPending,
		Total:     total,
		Errors:    []ItemError{},
		Results:   []ItemResult{},
		StartedAt: r.now(),
	}
}

func (r *Registry) start(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, err := r.mutable(id)
	if err != nil {
		return err
	}
	task.Status = StatusRunning
	return nil
}

func (r *Registry) recordSuccess(id string, result ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, err := r.countable(id)
	if err != nil {
		return err
	}
	task.Completed++
	task.Success++
	task.Results = append(task.Results, result)
	return nil
}

func (r *Registry) recordFailure(id string, itemErr ItemError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, err := r.countable(id)
	if err != nil {
		return err
	}
	task.Completed++
	task.Failed++
	task.Errors = append(task.Errors, itemErr)
	return nil
}

func (r *Registry) finish(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, err := r.mutable(id)
	if err != nil {
		return err
	}
	task.Status = StatusCompleted
	task.FinishedAt = r.now()
	return nil
}

func (r *Registry) fail(id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, err := r.mutable(id)
	if err != nil {
		return err
	}
	task.Status = StatusFailed
	task.FailureReason = reason
	task.FinishedAt = r.now()
	return nil
}

func (r *Registry) mutable(id string) (*Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return nil, ErrTaskTerminal
	}
	return task, nil
}

func (r *Registry) countable(id string) (*Task, error) {
	task, err := r.mutable(id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusRunning {
		return nil, ErrTaskNotRunning
	}
	if task.Completed >= task.Total {
		return nil, ErrCounterOverflow
	}
	return task, nil
}

// Counts returns how many tracked tasks are still active and how many have
// reached a terminal status.
func (r *Registry) Counts() (active, terminal int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, task := range r.tasks {
		if task.Status.Terminal() {
			terminal++
		} else {
			active++
		}
	}
	return active, terminal
}

// Sweep removes terminal tasks that finished more than retention ago and
// returns how many were removed.
func (r *Registry) Sweep(retention time.Duration) int {
	cutoff := r.now().Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, task := range r.tasks {
		if task.Status.Terminal() && task.FinishedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// StartSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(retention); n > 0 {
					telemetry.Info("batch.swept", map[string]any{"removed": n})
				}
			}
		}
	}()
}
