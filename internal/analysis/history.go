package analysis

import (
	"context"
	"sync"
	"time"

	"justicebench/internal/batch"
)

// DefaultHistoryLimit bounds the number of analyses kept in memory.
const DefaultHistoryLimit = 1000

// Entry is one analysis in the results history. TaskID is empty for
// analyses run outside a batch.
type Entry struct {
	batch.ItemResult
	TaskID     string    `json:"task_id,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// History is the process-wide record of successful analyses, oldest first.
// Once full, the oldest entries are dropped.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	now     func() time.Time
}

// NewHistory returns an empty history holding at most limit entries.
// limit <= 0 uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, now: time.Now}
}

// Add appends e, stamping AnalyzedAt when unset, and returns the stored entry.
func (h *History) Add(e Entry) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.AnalyzedAt.IsZero() {
		e.AnalyzedAt = h.now().UTC()
	}
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}
	return e
}

// RecordResult adds a batch item result.
func (h *History) RecordResult(_ context.Context, taskID string, result batch.ItemResult) {
	h.Add(Entry{ItemResult: result, TaskID: taskID})
}

// List returns a copy of the history, oldest first.
func (h *History) List() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry{}, h.entries...)
}

// Len reports how many entries are held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

var _ batch.ResultSink = (*History)(nil)
