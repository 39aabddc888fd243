package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"justicebench/internal/evaluation"
	"justicebench/internal/llm"
	"justicebench/internal/shared/telemetry"
)

// Orchestrator advances one session through Upload, Questions, Answers and
// Evaluation. Answers and Evaluation fan out one call per question and join
// on all of them before the step completes.
type Orchestrator struct {
	api API

	// Model is sent with every answer request; empty uses the server default.
	Model string
	// OnItemStatus, when set, is called as each fan-out call changes status.
	// It may be called from several goroutines at once.
	OnItemStatus func(step Step, index int, status ItemStatus)

	mu    sync.Mutex
	state State
	// gen is bumped by backward moves so that in-flight results from an
	// abandoned fan-out are dropped.
	gen uint64
}

// NewOrchestrator constructs an Orchestrator in the Upload step.
func NewOrchestrator(api API) *Orchestrator {
	return &Orchestrator{api: api, state: State{Step: StepUpload}}
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Upload starts a new session, discarding the previous one.
func (o *Orchestrator) Upload(ctx context.Context, upload Upload) error {
	id, text, err := o.api.CreateSession(ctx, upload)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	o.mu.Lock()
	previous := o.state.SessionID
	o.gen++
	o.state = State{
		SessionID: id,
		Step:      StepUpload,
		FileName:  upload.FileName,
		RawText:   text,
	}
	o.mu.Unlock()

	if previous != "" {
		o.discardRemote(ctx, previous)
	}
	return nil
}

// Mask redacts the uploaded text on the server.
func (o *Orchestrator) Mask(ctx context.Context, mode string) (string, error) {
	id, err := o.requireStep(StepUpload)
	if err != nil {
		return "", err
	}
	redacted, err := o.api.Mask(ctx, id, mode)
	if err != nil {
		return "", fmt.Errorf("mask: %w", err)
	}
	o.mu.Lock()
	if o.state.SessionID == id {
		o.state.RedactedText = redacted
	}
	o.mu.Unlock()
	return redacted, nil
}

// EditRedacted replaces the redacted text with a manual edit.
func (o *Orchestrator) EditRedacted(ctx context.Context, text string) error {
	id, err := o.requireStep(StepUpload)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: redacted text is empty", ErrStepPrecondition)
	}
	if err := o.api.SetRedacted(ctx, id, text); err != nil {
		return fmt.Errorf("set redacted: %w", err)
	}
	o.mu.Lock()
	if o.state.SessionID == id {
		o.state.RedactedText = text
	}
	o.mu.Unlock()
	return nil
}

// AdvanceToQuestions generates questions from the redacted text and moves to
// the Questions step. At most MaxQuestions are kept.
func (o *Orchestrator) AdvanceToQuestions(ctx context.Context) error {
	o.mu.Lock()
	if o.state.SessionID == "" {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.state.Step != StepUpload {
		o.mu.Unlock()
		return fmt.Errorf("%w: not in upload step", ErrStepPrecondition)
	}
	if strings.TrimSpace(o.state.RedactedText) == "" {
		o.mu.Unlock()
		return fmt.Errorf("%w: redacted text is empty", ErrStepPrecondition)
	}
	if o.state.Busy {
		o.mu.Unlock()
		return ErrBusy
	}
	id, gen := o.state.SessionID, o.gen
	o.state.Busy = true
	o.mu.Unlock()

	questions, err := o.api.GenerateQuestions(ctx, id)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return fmt.Errorf("%w: step changed during generation", ErrStepPrecondition)
	}
	o.state.Busy = false
	if err != nil {
		return fmt.Errorf("generate questions: %w", err)
	}
	if len(questions) > MaxQuestions {
		questions = questions[:MaxQuestions]
	}
	o.state.Questions = questions
	o.resetSlotsLocked()
	o.state.Step = StepQuestions
	return nil
}

// AddQuestion appends a manual question. The eleventh question is rejected
// before any request is made.
func (o *Orchestrator) AddQuestion(ctx context.Context, question string) error {
	return o.editQuestions(ctx, func(qs []string) ([]string, error) {
		if len(qs) >= MaxQuestions {
			return nil, fmt.Errorf("%w: at most %d", ErrTooManyQuestions, MaxQuestions)
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return nil, ErrInvalidQuestion
		}
		return append(qs, question), nil
	})
}

// UpdateQuestion replaces the question at index.
func (o *Orchestrator) UpdateQuestion(ctx context.Context, index int, question string) error {
	return o.editQuestions(ctx, func(qs []string) ([]string, error) {
		if index < 0 || index >= len(qs) {
			return nil, ErrIndexOutOfRange
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return nil, ErrInvalidQuestion
		}
		qs[index] = question
		return qs, nil
	})
}

// DeleteQuestion removes the question at index.
func (o *Orchestrator) DeleteQuestion(ctx context.Context, index int) error {
	return o.editQuestions(ctx, func(qs []string) ([]string, error) {
		if index < 0 || index >= len(qs) {
			return nil, ErrIndexOutOfRange
		}
		return append(qs[:index], qs[index+1:]...), nil
	})
}

func (o *Orchestrator) editQuestions(ctx context.Context, edit func([]string) ([]string, error)) error {
	o.mu.Lock()
	if o.state.Step != StepQuestions {
		o.mu.Unlock()
		return fmt.Errorf("%w: not in questions step", ErrStepPrecondition)
	}
	if o.state.Busy {
		o.mu.Unlock()
		return ErrBusy
	}
	id := o.state.SessionID
	next, err := edit(append([]string(nil), o.state.Questions...))
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if err := o.api.ReplaceQuestions(ctx, id, next); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.SessionID == id {
		o.state.Questions = next
		o.resetSlotsLocked()
	}
	return nil
}

// FanOutResult counts the outcome of one fan-out step.
type FanOutResult struct {
	Succeeded int
	Failed    int
}

// AdvanceToAnswers moves to the Answers step and generates one answer per
// question concurrently. Failed slots stay empty and are carried forward.
func (o *Orchestrator) AdvanceToAnswers(ctx context.Context) (FanOutResult, error) {
	o.mu.Lock()
	if o.state.Step != StepQuestions {
		o.mu.Unlock()
		return FanOutResult{}, fmt.Errorf("%w: not in questions step", ErrStepPrecondition)
	}
	n := len(o.state.Questions)
	if n == 0 || n > MaxQuestions {
		o.mu.Unlock()
		return FanOutResult{}, fmt.Errorf("%w: need 1-%d questions, have %d", ErrStepPrecondition, MaxQuestions, n)
	}
	if o.state.Busy {
		o.mu.Unlock()
		return FanOutResult{}, ErrBusy
	}
	id, gen, model := o.state.SessionID, o.gen, o.Model
	o.state.Step = StepAnswers
	o.state.Busy = true
	o.state.Answers = make([]*llm.Answer, n)
	o.state.AnswerStatus = statuses(n, ItemPending)
	o.mu.Unlock()

	res := o.fanOut(StepAnswers, gen, n, func(i int) bool {
		answer, err := o.api.GenerateAnswer(ctx, id, i, model)
		if err != nil {
			telemetry.Warn("workflow.answer.failed", map[string]any{
				"session_id": id,
				"index":      i,
				"error":      err.Error(),
			})
			return false
		}
		return o.commit(gen, func() { o.state.Answers[i] = &answer })
	})
	return res, nil
}

// AdvanceToEvaluation moves to the Evaluation step and evaluates every answer
// slot concurrently. A failed call yields the fallback record. The returned
// summary aggregates all slots.
func (o *Orchestrator) AdvanceToEvaluation(ctx context.Context, reference string) (evaluation.Summary, error) {
	o.mu.Lock()
	if o.state.Step != StepAnswers {
		o.mu.Unlock()
		return evaluation.Summary{}, fmt.Errorf("%w: not in answers step", ErrStepPrecondition)
	}
	if o.state.Busy {
		o.mu.Unlock()
		return evaluation.Summary{}, ErrBusy
	}
	n := len(o.state.Answers)
	id, gen := o.state.SessionID, o.gen
	o.state.Step = StepEvaluation
	o.state.Busy = true
	o.state.Evaluations = make([]*evaluation.Record, n)
	o.state.EvalStatus = statuses(n, ItemPending)
	o.mu.Unlock()

	o.fanOut(StepEvaluation, gen, n, func(i int) bool {
		rec, err := o.api.Evaluate(ctx, id, i, reference)
		ok := err == nil
		if !ok {
			telemetry.Warn("workflow.evaluation.fallback", map[string]any{
				"session_id": id,
				"index":      i,
				"error":      err.Error(),
			})
			rec = evaluation.Fallback()
		}
		o.commit(gen, func() { o.state.Evaluations[i] = &rec })
		return ok
	})
	return o.Summary(), nil
}

// fanOut runs call for every index in its own goroutine and waits for all
// of them. call reports whether the item succeeded.
func (o *Orchestrator) fanOut(step Step, gen uint64, n int, call func(i int) bool) FanOutResult {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res FanOutResult
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.setStatus(step, gen, i, ItemGenerating)
			ok := call(i)
			status := ItemCompleted
			if !ok {
				status = ItemFailed
			}
			o.setStatus(step, gen, i, status)

			mu.Lock()
			if ok {
				res.Succeeded++
			} else {
				res.Failed++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	o.mu.Lock()
	if gen == o.gen {
		o.state.Busy = false
	}
	o.mu.Unlock()
	return res
}

// commit applies write if the fan-out that produced it is still current.
func (o *Orchestrator) commit(gen uint64, write func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return false
	}
	write()
	return true
}

func (o *Orchestrator) setStatus(step Step, gen uint64, index int, status ItemStatus) {
	applied := o.commit(gen, func() {
		switch step {
		case StepAnswers:
			o.state.AnswerStatus[index] = status
		case StepEvaluation:
			o.state.EvalStatus[index] = status
		}
	})
	if applied && o.OnItemStatus != nil {
		o.OnItemStatus(step, index, status)
	}
}

// GoBack moves one step backward. It always succeeds from steps 2-4 and
// clears the busy flag.
func (o *Orchestrator) GoBack() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Step > StepUpload {
		o.moveBackLocked(o.state.Step - 1)
	}
	return o.state.Step
}

// GoTo jumps to target. Moving backward always succeeds; moving forward
// requires the Advance methods.
func (o *Orchestrator) GoTo(target Step) error {
	if target < StepUpload || target > StepEvaluation {
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(target))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case target == o.state.Step:
		return nil
	case target > o.state.Step:
		return fmt.Errorf("%w: cannot skip forward to %s", ErrStepPrecondition, target)
	}
	o.moveBackLocked(target)
	return nil
}

func (o *Orchestrator) moveBackLocked(target Step) {
	o.gen++
	o.state.Step = target
	o.state.Busy = false
}

// Summary aggregates the evaluations, counting empty slots as fallback
// records.
func (o *Orchestrator) Summary() evaluation.Summary {
	o.mu.Lock()
	records := o.state.Records()
	o.mu.Unlock()
	return evaluation.Aggregate(records)
}

// Discard deletes the session on the server and resets local state.
func (o *Orchestrator) Discard(ctx context.Context) {
	o.mu.Lock()
	id := o.state.SessionID
	o.gen++
	o.state = State{Step: StepUpload}
	o.mu.Unlock()
	if id != "" {
		o.discardRemote(ctx, id)
	}
}

func (o *Orchestrator) discardRemote(ctx context.Context, id string) {
	if err := o.api.DeleteSession(ctx, id); err != nil {
		telemetry.Warn("workflow.discard_failed", map[string]any{"session_id": id, "error": err.Error()})
	}
}

func (o *Orchestrator) requireStep(step Step) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.SessionID == "" {
		return "", ErrNoSession
	}
	if o.state.Step != step {
		return "", fmt.Errorf("%w: not in %s step", ErrStepPrecondition, step)
	}
	if o.state.Busy {
		return "", ErrBusy
	}
	return o.state.SessionID, nil
}

func (o *Orchestrator) resetSlotsLocked() {
	n := len(o.state.Questions)
	o.state.Answers = make([]*llm.Answer, n)
	o.state.AnswerStatus = statuses(n, ItemPending)
	o.state.Evaluations = make([]*evaluation.Record, n)
	o.state.EvalStatus = statuses(n, ItemPending)
}
