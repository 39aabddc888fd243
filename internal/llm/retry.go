package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"justicebench/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base  Client
	delay time.Duration
}

// NewRetrying wraps base so that every call is retried once after a short
// delay when the first attempt fails with a transient error.
func NewRetrying(base Client) Client {
	if base == nil {
		return nil
	}
	return retrying{base: base, delay: retryBaseDelay}
}

func (r retrying) AnalyzeCase(ctx context.Context, input AnalyzeInput) (string, error) {
	return retryOnce(ctx, r.delay, "analyze_case", func() (string, error) {
		return r.base.AnalyzeCase(ctx, input)
	})
}

func (r retrying) CompareDecisions(ctx context.Context, input CompareInput) (string, error) {
	return retryOnce(ctx, r.delay, "compare_decisions", func() (string, error) {
		return r.base.CompareDecisions(ctx, input)
	})
}

func (r retrying) GenerateQuestions(ctx context.Context, caseText string) ([]string, error) {
	return retryOnce(ctx, r.delay, "generate_questions", func() ([]string, error) {
		return r.base.GenerateQuestions(ctx, caseText)
	})
}

func (r retrying) AnswerQuestion(ctx context.Context, input AnswerInput) (Answer, error) {
	return retryOnce(ctx, r.delay, "answer_question", func() (Answer, error) {
		return r.base.AnswerQuestion(ctx, input)
	})
}

func (r retrying) EvaluateAnswer(ctx context.Context, input EvaluateInput) (json.RawMessage, error) {
	return retryOnce(ctx, r.delay, "evaluate_answer", func() (json.RawMessage, error) {
		return r.base.EvaluateAnswer(ctx, input)
	})
}

func (r retrying) MaskText(ctx context.Context, text string) (string, error) {
	return retryOnce(ctx, r.delay, "mask_text", func() (string, error) {
		return r.base.MaskText(ctx, text)
	})
}

func retryOnce[T any](ctx context.Context, delay time.Duration, op string, call func() (T, error)) (T, error) {
	resp, err := call()
	if err == nil || !ShouldRetry(err) {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"op":         op,
		"attempt":    1,
		"error":      err.Error(),
	})
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	return call()
}

// ShouldRetry reports whether err looks like a transient provider failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "http status 429") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof")
}
