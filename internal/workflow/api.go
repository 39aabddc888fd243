package workflow

import (
	"context"

	"justicebench/internal/evaluation"
	"justicebench/internal/llm"
)

// Upload is a case document, either as file bytes or pasted text.
type Upload struct {
	FileName string
	Data     []byte
	Text     string
}

// API is the session surface of the backend the orchestrator drives.
type API interface {
	CreateSession(ctx context.Context, upload Upload) (sessionID, text string, err error)
	Mask(ctx context.Context, sessionID, mode string) (string, error)
	SetRedacted(ctx context.Context, sessionID, text string) error
	GenerateQuestions(ctx context.Context, sessionID string) ([]string, error)
	ReplaceQuestions(ctx context.Context, sessionID string, questions []string) error
	GenerateAnswer(ctx context.Context, sessionID string, index int, model string) (llm.Answer, error)
	Evaluate(ctx context.Context, sessionID string, index int, reference string) (evaluation.Record, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
