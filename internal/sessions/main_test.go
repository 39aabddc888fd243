package sessions

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"justicebench/internal/llm"
	"justicebench/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	restore := telemetry.SetOutput(io.Discard)
	code := m.Run()
	restore()
	os.Exit(code)
}

type fakeLLM struct {
	llm.PlaceholderClient
	questions []string
	maskOut   string
	maskErr   error
	answer    func(ctx context.Context, in llm.AnswerInput) (llm.Answer, error)
	evaluate  func(ctx context.Context, in llm.EvaluateInput) (json.RawMessage, error)
}

func (f *fakeLLM) GenerateQuestions(ctx context.Context, text string) ([]string, error) {
	return f.questions, nil
}

func (f *fakeLLM) MaskText(ctx context.Context, text string) (string, error) {
	return f.maskOut, f.maskErr
}

func (f *fakeLLM) AnswerQuestion(ctx context.Context, in llm.AnswerInput) (llm.Answer, error) {
	if f.answer == nil {
		return llm.Answer{Answer: "answer to " + in.Question}, nil
	}
	return f.answer(ctx, in)
}

func (f *fakeLLM) EvaluateAnswer(ctx context.Context, in llm.EvaluateInput) (json.RawMessage, error) {
	if f.evaluate == nil {
		return json.RawMessage(`{"scores":{"normative_basis":4},"total_score":16,"rationale":"ok"}`), nil
	}
	return f.evaluate(ctx, in)
}
