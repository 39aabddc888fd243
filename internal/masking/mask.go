package masking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"justicebench/internal/shared/telemetry"
)

// Mode selects how a text is masked.
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeReview Mode = "review"
)

var ErrUnknownMode = errors.New("unknown masking mode")

// ParseMode accepts "fast" and "review"; blank means fast.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeFast:
		return ModeFast, nil
	case ModeReview:
		return ModeReview, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
}

// Reviewer masks text with a model.
type Reviewer interface {
	MaskText(ctx context.Context, text string) (string, error)
}

// Result is a masked text and the mode that produced it.
type Result struct {
	Text     string
	Mode     Mode
	FellBack bool
}

// Mask masks text in the requested mode. Review mode falls back to Fast when
// the reviewer fails or returns nothing.
func Mask(ctx context.Context, mode Mode, reviewer Reviewer, text string) Result {
	if mode != ModeReview || reviewer == nil {
		return Result{Text: Fast(text), Mode: ModeFast}
	}

	masked, err := reviewer.MaskText(ctx, text)
	if err == nil && strings.TrimSpace(masked) != "" {
		return Result{Text: masked, Mode: ModeReview}
	}

	fields := map[string]any{"request_id": telemetry.RequestID(ctx)}
	if err != nil {
		fields["error"] = err.Error()
	} else {
		fields["error"] = "empty output"
	}
	telemetry.Warn("masking.review_fallback", fields)
	return Result{Text: Fast(text), Mode: ModeFast, FellBack: true}
}
