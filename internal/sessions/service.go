package sessions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"justicebench/internal/evaluation"
	"justicebench/internal/extract"
	"justicebench/internal/llm"
	"justicebench/internal/masking"
	"justicebench/internal/shared/metrics"
	"justicebench/internal/shared/storage/object"
	"justicebench/internal/shared/telemetry"
)

// Service implements the session operations behind the workflow endpoints.
type Service struct {
	Store   Store
	LLM     llm.Client
	Objects object.ObjectStore
	now     func() time.Time
}

// NewService constructs a Service. objects may be nil, in which case uploads
// are not archived.
func NewService(store Store, client llm.Client, objects object.ObjectStore) *Service {
	return &Service{Store: store, LLM: client, Objects: objects, now: time.Now}
}

// CreateInput is either an uploaded file (Data) or pasted Text.
type CreateInput struct {
	FileName string
	MimeType string
	Data     []byte
	Text     string
}

// Create starts a session from an uploaded file or pasted text.
func (s *Service) Create(ctx context.Context, in CreateInput) (Session, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		if len(in.Data) == 0 {
			return Session{}, fmt.Errorf("%w: file or text is required", ErrInvalidInput)
		}
		extracted, err := extract.Text(ctx, in.Data, in.MimeType, in.FileName)
		if err != nil {
			return Session{}, err
		}
		text = extracted
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		FileName:  strings.TrimSpace(in.FileName),
		RawText:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(in.Data) > 0 {
		if doc, ok := s.archive(ctx, sess.ID, in); ok {
			sess.SourceKey = doc.Key
			sess.SourceSHA256 = doc.SHA256
		}
	}
	if err := s.Store.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	telemetry.Info("session.created", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"session_id": sess.ID,
		"file_name":  sess.FileName,
		"chars":      len([]rune(text)),
		"archived":   sess.SourceKey != "",
	})
	return sess, nil
}

// archive stores the original upload. Failure is logged and the session
// proceeds without a source key.
func (s *Service) archive(ctx context.Context, id string, in CreateInput) (object.Document, bool) {
	if s.Objects == nil {
		return object.Document{}, false
	}
	fileName := in.FileName
	if fileName == "" {
		fileName = "upload"
	}
	doc, err := s.Objects.Save(ctx, "sessions/"+id, fileName, bytes.NewReader(in.Data))
	if err != nil {
		telemetry.Warn("session.archive_failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"session_id": id,
			"error":      err.Error(),
		})
		return object.Document{}, false
	}
	return doc, true
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.Store.Get(ctx, id)
}

// Mask redacts the session's raw text. Review mode asks the model and falls
// back to fast masking when that fails.
func (s *Service) Mask(ctx context.Context, id string, mode masking.Mode) (masking.Result, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return masking.Result{}, err
	}
	res := masking.Mask(ctx, mode, s.LLM, sess.RawText)
	_, err = s.Store.Update(ctx, id, func(cur *Session) error {
		cur.RedactedText = res.Text
		cur.MaskMode = string(res.Mode)
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return masking.Result{}, err
	}
	return res, nil
}

// SetRedacted replaces the redacted text with a manual edit.
func (s *Service) SetRedacted(ctx context.Context, id, text string) (Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Session{}, fmt.Errorf("%w: redacted_text is required", ErrInvalidInput)
	}
	return s.Store.Update(ctx, id, func(cur *Session) error {
		cur.RedactedText = text
		cur.MaskMode = "manual"
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
}

// GenerateQuestions asks the model for questions about the redacted text and
// keeps at most MaxQuestions of them.
func (s *Service) GenerateQuestions(ctx context.Context, id string) ([]string, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sess.RedactedText) == "" {
		return nil, ErrNoRedactedText
	}

	generated, err := s.LLM.GenerateQuestions(ctx, sess.RedactedText)
	if err != nil {
		return nil, fmt.Errorf("%w: generate questions: %w", ErrUpstream, err)
	}
	questions := make([]string, 0, MaxQuestions)
	for _, q := range generated {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
		if len(questions) == MaxQuestions {
			break
		}
	}

	updated, err := s.setQuestions(ctx, id, questions)
	if err != nil {
		return nil, err
	}
	telemetry.Info("session.questions.generated", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"session_id": id,
		"returned":   len(generated),
		"kept":       len(updated.Questions),
	})
	return updated.Questions, nil
}

// ReplaceQuestions stores a manually edited question list.
func (s *Service) ReplaceQuestions(ctx context.Context, id string, questions []string) (Session, error) {
	if len(questions) > MaxQuestions {
		return Session{}, fmt.Errorf("%w: at most %d", ErrTooManyQuestions, MaxQuestions)
	}
	clean := make([]string, 0, len(questions))
	for i, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return Session{}, fmt.Errorf("%w: question %d is blank", ErrInvalidInput, i)
		}
		clean = append(clean, q)
	}
	return s.setQuestions(ctx, id, clean)
}

func (s *Service) setQuestions(ctx context.Context, id string, questions []string) (Session, error) {
	return s.Store.Update(ctx, id, func(cur *Session) error {
		previous := cur.Questions
		cur.Questions = questions
		cur.resizeSlots(previous)
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
}

// GenerateAnswer answers the question at index with the given model and
// stores the answer in that slot. A failed call leaves the slot empty.
func (s *Service) GenerateAnswer(ctx context.Context, id string, index int, model string) (llm.Answer, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return llm.Answer{}, err
	}
	if index < 0 || index >= len(sess.Questions) {
		return llm.Answer{}, ErrIndexOutOfRange
	}
	question := sess.Questions[index]

	start := time.Now()
	answer, err := s.LLM.AnswerQuestion(llm.WithModel(ctx, model), llm.AnswerInput{
		CaseText: sess.RedactedText,
		Question: question,
	})
	if err != nil {
		metrics.IncAnswerFailed()
		telemetry.Warn("session.answer.failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"session_id": id,
			"index":      index,
			"model":      model,
			"error":      err.Error(),
		})
		return llm.Answer{}, fmt.Errorf("%w: answer question %d: %w", ErrUpstream, index, err)
	}

	_, err = s.Store.Update(ctx, id, func(cur *Session) error {
		if index >= len(cur.Questions) || cur.Questions[index] != question {
			return ErrIndexOutOfRange
		}
		stored := answer
		cur.Answers[index] = &stored
		cur.Evaluations[index] = nil
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return llm.Answer{}, err
	}

	telemetry.Info("session.answer.generated", map[string]any{
		"request_id":  telemetry.RequestID(ctx),
		"session_id":  id,
		"index":       index,
		"model":       model,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return answer, nil
}

// EvaluateResult is a stored evaluation and whether it is the zero fallback
// used for an unreadable evaluator reply.
type EvaluateResult struct {
	Record   evaluation.Record
	Fallback bool
}

// Evaluate scores the answer at index. A reply that cannot be parsed is
// recorded as evaluation.Fallback(); a failed call is returned to the caller.
func (s *Service) Evaluate(ctx context.Context, id string, index int, reference string) (EvaluateResult, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return EvaluateResult{}, err
	}
	if index < 0 || index >= len(sess.Questions) {
		return EvaluateResult{}, ErrIndexOutOfRange
	}
	if sess.Answers[index] == nil {
		return EvaluateResult{}, ErrNoAnswer
	}
	question := sess.Questions[index]

	raw, err := s.LLM.EvaluateAnswer(ctx, llm.EvaluateInput{
		CaseText:  sess.RedactedText,
		Question:  question,
		Answer:    *sess.Answers[index],
		Reference: strings.TrimSpace(reference),
	})
	if err != nil {
		metrics.IncEvaluation(true)
		return EvaluateResult{}, fmt.Errorf("%w: evaluate answer %d: %w", ErrUpstream, index, err)
	}

	res := EvaluateResult{}
	res.Record, err = evaluation.ParseRecord(raw)
	if err != nil {
		telemetry.Warn("session.evaluation.unparsable", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"session_id": id,
			"index":      index,
			"error":      err.Error(),
		})
		res = EvaluateResult{Record: evaluation.Fallback(), Fallback: true}
	}
	metrics.IncEvaluation(res.Fallback)

	_, err = s.Store.Update(ctx, id, func(cur *Session) error {
		if index >= len(cur.Questions) || cur.Questions[index] != question {
			return ErrIndexOutOfRange
		}
		stored := res.Record
		cur.Evaluations[index] = &stored
		cur.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return EvaluateResult{}, err
	}
	return res, nil
}

// Summary aggregates the evaluations recorded so far. Slots without an
// evaluation count as fallback records.
func (s *Service) Summary(ctx context.Context, id string) (evaluation.Summary, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return evaluation.Summary{}, err
	}
	records := make([]evaluation.Record, len(sess.Evaluations))
	for i, rec := range sess.Evaluations {
		if rec == nil {
			records[i] = evaluation.Fallback()
			continue
		}
		records[i] = *rec
	}
	return evaluation.Aggregate(records), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete session: %w", err)
	}
	if sess.SourceKey != "" && s.Objects != nil {
		if err := s.Objects.Delete(ctx, sess.SourceKey); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("session.archive_delete_failed", map[string]any{
				"request_id": telemetry.RequestID(ctx),
				"session_id": id,
				"error":      err.Error(),
			})
		}
	}
	return nil
}
