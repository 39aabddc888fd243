package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Client abstracts the model provider used for case analysis and session
// question answering. Every method is a single remote call.
type Client interface {
	AnalyzeCase(ctx context.Context, input AnalyzeInput) (string, error)
	CompareDecisions(ctx context.Context, input CompareInput) (string, error)
	GenerateQuestions(ctx context.Context, caseText string) ([]string, error)
	AnswerQuestion(ctx context.Context, input AnswerInput) (Answer, error)
	EvaluateAnswer(ctx context.Context, input EvaluateInput) (json.RawMessage, error)
	MaskText(ctx context.Context, text string) (string, error)
}

// AnalyzeInput is one case submitted for an AI decision.
type AnalyzeInput struct {
	CaseTitle string
	CaseText  string
	// Question optionally focuses the analysis.
	Question string
}

// CompareInput pairs an AI decision with the judge's decision.
type CompareInput struct {
	AIDecision    string
	JudgeDecision string
}

// AnswerInput asks the model to answer one question about a redacted case.
type AnswerInput struct {
	CaseText string
	Question string
}

// Answer is the model's answer and its stated reasoning.
type Answer struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
}

// EvaluateInput scores an answer against the case and an optional reference.
type EvaluateInput struct {
	CaseText  string
	Question  string
	Answer    Answer
	Reference string
}

type modelKey struct{}

// WithModel overrides the provider's default model for calls made with ctx.
func WithModel(ctx context.Context, model string) context.Context {
	model = strings.TrimSpace(model)
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey{}, model)
}

// ModelFromContext returns the model override carried by ctx, if any.
func ModelFromContext(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(modelKey{}).(string)
	return val, ok && val != ""
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderClient fails every call. It is used when no provider key is set
// so that the API still serves case and progress routes.
type PlaceholderClient struct{}

func (PlaceholderClient) AnalyzeCase(context.Context, AnalyzeInput) (string, error) {
	return "", ErrNotConfigured
}

func (PlaceholderClient) CompareDecisions(context.Context, CompareInput) (string, error) {
	return "", ErrNotConfigured
}

func (PlaceholderClient) GenerateQuestions(context.Context, string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (PlaceholderClient) AnswerQuestion(context.Context, AnswerInput) (Answer, error) {
	return Answer{}, ErrNotConfigured
}

func (PlaceholderClient) EvaluateAnswer(context.Context, EvaluateInput) (json.RawMessage, error) {
	return nil, ErrNotConfigured
}

func (PlaceholderClient) MaskText(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
