package batch

import (
	"encoding/json"
	"time"
)

// Snapshot is a consistent, read-only view of a task.
type Snapshot struct {
	TaskID                    string       `json:"task_id"`
	Status                    Status       `json:"status"`
	Completed                 int          `json:"completed"`
	Total                     int          `json:"total"`
	Success                   int          `json:"success"`
	Failed                    int          `json:"failed"`
	Percentage                int          `json:"percentage"`
	EstimatedRemainingSeconds *int         `json:"estimated_remaining_seconds,omitempty"`
	Errors                    []ItemError  `json:"errors"`
	Results                   []ItemResult `json:"results,omitempty"`
	Error                     string       `json:"error,omitempty"`
	StartedAt                 time.Time    `json:"started_at"`
	FinishedAt                *time.Time   `json:"finished_at,omitempty"`
}

// MarshalJSON always writes results for a completed task, as an empty array
// when no item succeeded, and omits them otherwise.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	out := struct {
		plain
		Results *[]ItemResult `json:"results,omitempty"`
	}{plain: plain(s)}
	if s.Status == StatusCompleted {
		results := s.Results
		if results == nil {
			results = []ItemResult{}
		}
		out.Results = &results
	}
	return json.Marshal(out)
}

// Progress returns a snapshot of the task. Results are only included once
// the task has completed.
func (r *Registry) Progress(id string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, ErrTaskNotFound
	}
	return snapshotOf(task, r.now()), nil
}

func snapshotOf(task *Task, now time.Time) Snapshot {
	snap := Snapshot{
		TaskID:     task.ID,
		Status:     task.Status,
		Completed:  task.Completed,
		Total:      task.Total,
		Success:    task.Success,
		Failed:     task.Failed,
		Percentage: percentage(task.Completed, task.Total),
		Errors:     append([]ItemError{}, task.Errors...),
		Error:      task.FailureReason,
		StartedAt:  task.StartedAt,
	}
	if task.Status == StatusCompleted {
		snap.Results = append([]ItemResult{}, task.Results...)
	}
	if !task.FinishedAt.IsZero() {
		finished := task.FinishedAt
		snap.FinishedAt = &finished
	}
	if task.Status == StatusRunning {
		snap.EstimatedRemainingSeconds = estimateRemaining(task.Completed, task.Total, now.Sub(task.StartedAt))
	}
	return snap
}

func percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return completed * 100 / total
}

// estimateRemaining extrapolates the mean time per completed item over the
// items still outstanding, truncated to whole seconds.
func estimateRemaining(completed, total int, elapsed time.Duration) *int {
	if completed <= 0 {
		return nil
	}
	if elapsed < 0 {
		elapsed = 0
	}
	perItem := elapsed.Seconds() / float64(completed)
	secs := int(perItem * float64(total-completed))
	return &secs
}
