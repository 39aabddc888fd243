package batch

import (
	"context"
	"time"
)

// Status is the lifecycle state of a batch task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Similarity holds five percentages in [0, 100] comparing an AI decision with
// the judge's decision. All are zero when HasReference is false.
type Similarity struct {
	Overall      float64 `json:"overall_similarity"`
	Keyword      float64 `json:"keyword_similarity"`
	Result       float64 `json:"result_consistency"`
	LegalBasis   float64 `json:"legal_basis_similarity"`
	Reasoning    float64 `json:"reasoning_similarity"`
	HasReference bool    `json:"has_reference"`
}

// ItemResult is the outcome of one successfully analyzed item.
type ItemResult struct {
	ItemID            string     `json:"item_id"`
	Title             string     `json:"title"`
	Question          string     `json:"question,omitempty"`
	Decision          string     `json:"decision"`
	ReferenceDecision string     `json:"reference_decision,omitempty"`
	Comparison        string     `json:"comparison,omitempty"`
	Similarity        Similarity `json:"similarity"`
}

// ItemError records one failed item.
type ItemError struct {
	ItemID    string `json:"item_id"`
	ItemTitle string `json:"item_title,omitempty"`
	Message   string `json:"error_message"`
}

// Task is the registry's record of one batch run.
type Task struct {
	ID            string
	Status        Status
	Total         int
	Completed     int
	Success       int
	Failed        int
	Errors        []ItemError
	Results       []ItemResult
	FailureReason string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Capability analyzes a single item. Implementations must be safe for
// concurrent use.
type Capability interface {
	Run(ctx context.Context, itemID string) (ItemResult, error)
}

// ResultSink receives every successful item result once the registry has
// recorded it.
type ResultSink interface {
	RecordResult(ctx context.Context, taskID string, result ItemResult)
}

// Preparer is implemented by capabilities that need a setup step before any
// item runs. A Prepare error fails the whole batch.
type Preparer interface {
	Prepare(ctx context.Context, itemIDs []string) error
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, itemID string) (ItemResult, error)

func (f CapabilityFunc) Run(ctx context.Context, itemID string) (ItemResult, error) {
	return f(ctx, itemID)
}
