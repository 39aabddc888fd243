package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"justicebench/internal/shared/telemetry"
)

// MaxQuestions caps the questions generated for one case.
const MaxQuestions = 10

var ErrInvalidQuestionCount = fmt.Errorf("question count must be between 1 and %d", MaxQuestions)

// CaseQuestions is the question set generated for one case.
type CaseQuestions struct {
	CaseID    string   `json:"case_id"`
	CaseTitle string   `json:"case_title"`
	Questions []string `json:"questions"`
}

// CaseQuestion is one generated question tagged with its case.
type CaseQuestion struct {
	CaseID    string `json:"case_id"`
	CaseTitle string `json:"case_title"`
	Question  string `json:"question"`
}

// QuestionFailure names a case whose generation failed.
type QuestionFailure struct {
	CaseID    string `json:"case_id"`
	CaseTitle string `json:"case_title"`
	Message   string `json:"error_message"`
}

// QuestionBatch is the outcome of generating questions for several cases.
// Skipped holds ids that name no stored case or a case without text.
type QuestionBatch struct {
	Questions  []CaseQuestion    `json:"questions"`
	Skipped    []string          `json:"skipped"`
	Failed     []QuestionFailure `json:"failed"`
	TotalCases int               `json:"total_cases"`
}

// QuestionCount resolves a requested count: zero means MaxQuestions.
func QuestionCount(n int) (int, error) {
	switch {
	case n == 0:
		return MaxQuestions, nil
	case n < 0 || n > MaxQuestions:
		return 0, ErrInvalidQuestionCount
	}
	return n, nil
}

// GenerateQuestions asks the model for test questions about one stored case
// and keeps at most n of them.
func (s *Service) GenerateQuestions(ctx context.Context, caseID string, n int) (CaseQuestions, error) {
	n, err := QuestionCount(n)
	if err != nil {
		return CaseQuestions{}, err
	}
	c, err := s.lookupOne(ctx, caseID)
	if err != nil {
		return CaseQuestions{}, err
	}
	generated, err := s.LLM.GenerateQuestions(ctx, c.Text)
	if err != nil {
		return CaseQuestions{}, fmt.Errorf("%w: generate questions: %w", ErrUpstream, err)
	}
	return CaseQuestions{CaseID: c.ID, CaseTitle: c.Title, Questions: keepQuestions(generated, n)}, nil
}

// GenerateQuestionsBatch generates up to n questions for each case in ids,
// in request order. A case whose generation fails is reported in Failed and
// does not stop the others. ErrCaseNotFound is returned when no id names a
// stored case.
func (s *Service) GenerateQuestionsBatch(ctx context.Context, ids []string, n int) (QuestionBatch, error) {
	n, err := QuestionCount(n)
	if err != nil {
		return QuestionBatch{}, err
	}
	found, err := s.Cases.Lookup(ctx, ids)
	if err != nil {
		return QuestionBatch{}, fmt.Errorf("lookup cases: %w", err)
	}
	if len(found) == 0 {
		return QuestionBatch{}, ErrCaseNotFound
	}

	out := QuestionBatch{
		Questions:  []CaseQuestion{},
		Skipped:    []string{},
		Failed:     []QuestionFailure{},
		TotalCases: len(found),
	}
	for _, id := range ids {
		c, ok := found[id]
		if !ok || strings.TrimSpace(c.Text) == "" {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		if err := ctx.Err(); err != nil {
			return QuestionBatch{}, err
		}
		generated, err := s.LLM.GenerateQuestions(ctx, c.Text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return QuestionBatch{}, err
			}
			telemetry.Warn("analysis.questions.case_failed", map[string]any{
				"request_id": telemetry.RequestID(ctx),
				"case_id":    id,
				"error":      err.Error(),
			})
			out.Failed = append(out.Failed, QuestionFailure{CaseID: id, CaseTitle: c.Title, Message: err.Error()})
			continue
		}
		for _, q := range keepQuestions(generated, n) {
			out.Questions = append(out.Questions, CaseQuestion{CaseID: id, CaseTitle: c.Title, Question: q})
		}
	}
	telemetry.Info("analysis.questions.generated", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"cases":      out.TotalCases,
		"questions":  len(out.Questions),
		"failed":     len(out.Failed),
	})
	return out, nil
}

func keepQuestions(generated []string, n int) []string {
	out := make([]string, 0, n)
	for _, q := range generated {
		if len(out) == n {
			break
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
