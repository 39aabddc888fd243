package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"justicebench/internal/batch"
	"justicebench/internal/cases"
	"justicebench/internal/llm"
	"justicebench/internal/shared/telemetry"
)

var (
	// ErrCaseMissing is reported for a batch item whose case disappeared
	// between submission and execution.
	ErrCaseMissing   = errors.New("case no longer exists")
	ErrCaseNotFound  = errors.New("case not found")
	ErrEmptyCaseText = errors.New("case has no text")
	ErrUpstream      = errors.New("model call failed")
)

// CaseSource looks up stored cases by id.
type CaseSource interface {
	Lookup(ctx context.Context, ids []string) (map[string]cases.Case, error)
}

// Service analyzes stored cases one at a time or as batch runs, and keeps
// the history of every successful analysis.
type Service struct {
	Cases   CaseSource
	LLM     llm.Client
	History *History
}

// NewService constructs a Service with an empty history of
// DefaultHistoryLimit entries.
func NewService(source CaseSource, client llm.Client) *Service {
	return &Service{Cases: source, LLM: client, History: NewHistory(DefaultHistoryLimit)}
}

// Plan keeps the ids that name stored cases, in request order, and returns
// the capability that analyzes them.
func (s *Service) Plan(ctx context.Context, ids []string, question string) ([]string, batch.Capability, error) {
	found, err := s.Cases.Lookup(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup cases: %w", err)
	}
	known := make([]string, 0, len(found))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil, nil, batch.ErrNoKnownItems
	}
	titles := make(map[string]string, len(found))
	for id, c := range found {
		titles[id] = c.Title
	}
	return known, &run{svc: s, question: strings.TrimSpace(question), titles: titles}, nil
}

// run analyzes the cases of one batch. Prepare loads them once so every
// item reads from the same snapshot. titles come from planning and name
// cases that are gone by the time Prepare runs.
type run struct {
	svc      *Service
	question string
	titles   map[string]string

	mu    sync.RWMutex
	cases map[string]cases.Case
}

func (r *run) Prepare(ctx context.Context, ids []string) error {
	found, err := r.svc.Cases.Lookup(ctx, ids)
	if err != nil {
		return fmt.Errorf("load cases: %w", err)
	}
	r.mu.Lock()
	r.cases = found
	r.mu.Unlock()
	return nil
}

func (r *run) Run(ctx context.Context, id string) (batch.ItemResult, error) {
	r.mu.RLock()
	c, ok := r.cases[id]
	r.mu.RUnlock()
	if !ok {
		return batch.ItemResult{}, &batch.ItemFailure{Title: r.titles[id], Err: ErrCaseMissing}
	}
	return r.svc.Analyze(ctx, c, r.question)
}

// Analyze produces the AI decision for c and, when c carries a judge
// decision, the comparison and similarity metrics. A failed comparison is
// reported in the comparison text rather than failing the item.
func (s *Service) Analyze(ctx context.Context, c cases.Case, question string) (batch.ItemResult, error) {
	decision, err := s.LLM.AnalyzeCase(ctx, llm.AnalyzeInput{
		CaseTitle: c.Title,
		CaseText:  c.Text,
		Question:  question,
	})
	if err != nil {
		return batch.ItemResult{}, &batch.ItemFailure{Title: c.Title, Err: err}
	}

	result := batch.ItemResult{
		ItemID:   c.ID,
		Title:    c.Title,
		Question: question,
		Decision: decision,
	}
	judge := strings.TrimSpace(c.JudgeDecision)
	if judge == "" {
		return result, nil
	}

	result.ReferenceDecision = judge
	comparison, err := s.LLM.CompareDecisions(ctx, llm.CompareInput{AIDecision: decision, JudgeDecision: judge})
	if err != nil {
		comparison = "comparison failed: " + err.Error()
	}
	result.Comparison = comparison
	result.Similarity = Compare(decision, judge)
	return result, nil
}

// AnalyzeOne analyzes the stored case caseID outside any batch and adds the
// result to the history.
func (s *Service) AnalyzeOne(ctx context.Context, caseID, question string) (Entry, error) {
	c, err := s.lookupOne(ctx, caseID)
	if err != nil {
		return Entry{}, err
	}
	result, err := s.Analyze(ctx, c, strings.TrimSpace(question))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	entry := s.History.Add(Entry{ItemResult: result})
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":    telemetry.RequestID(ctx),
		"case_id":       c.ID,
		"has_reference": result.Similarity.HasReference,
	})
	return entry, nil
}

func (s *Service) lookupOne(ctx context.Context, caseID string) (cases.Case, error) {
	found, err := s.Cases.Lookup(ctx, []string{caseID})
	if err != nil {
		return cases.Case{}, fmt.Errorf("lookup case: %w", err)
	}
	c, ok := found[caseID]
	if !ok {
		return cases.Case{}, ErrCaseNotFound
	}
	if strings.TrimSpace(c.Text) == "" {
		return cases.Case{}, ErrEmptyCaseText
	}
	return c, nil
}

var (
	_ batch.Planner    = (*Service)(nil)
	_ batch.Capability = (*run)(nil)
	_ batch.Preparer   = (*run)(nil)
)
