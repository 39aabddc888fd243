package workflow

import (
	"errors"
	"fmt"

	"justicebench/internal/evaluation"
	"justicebench/internal/llm"
)

// MaxQuestions caps the questions a session may carry.
const MaxQuestions = 10

// Step is a stage of the session workflow.
type Step int

const (
	StepUpload Step = iota + 1
	StepQuestions
	StepAnswers
	StepEvaluation
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepQuestions:
		return "questions"
	case StepAnswers:
		return "answers"
	case StepEvaluation:
		return "evaluation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ItemStatus tracks one fan-out call.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemGenerating ItemStatus = "generating"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

var (
	ErrNoSession        = errors.New("no session uploaded")
	ErrStepPrecondition = errors.New("step precondition not met")
	ErrTooManyQuestions = errors.New("too many questions")
	ErrInvalidQuestion  = errors.New("question must not be blank")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrBusy             = errors.New("generation in progress")
	ErrUnknownStep      = errors.New("unknown step")
)

// State is the client-side view of one session. Answers, AnswerStatus,
// Evaluations and EvalStatus run parallel to Questions.
type State struct {
	SessionID    string
	Step         Step
	FileName     string
	RawText      string
	RedactedText string
	Questions    []string
	Answers      []*llm.Answer
	AnswerStatus []ItemStatus
	Evaluations  []*evaluation.Record
	EvalStatus   []ItemStatus
	Busy         bool
}

func (s State) clone() State {
	out := s
	out.Questions = append([]string(nil), s.Questions...)
	out.AnswerStatus = append([]ItemStatus(nil), s.AnswerStatus...)
	out.EvalStatus = append([]ItemStatus(nil), s.EvalStatus...)
	out.Answers = make([]*llm.Answer, len(s.Answers))
	for i, a := range s.Answers {
		if a != nil {
			cp := *a
			out.Answers[i] = &cp
		}
	}
	out.Evaluations = make([]*evaluation.Record, len(s.Evaluations))
	for i, e := range s.Evaluations {
		if e != nil {
			cp := e.Clone()
			out.Evaluations[i] = &cp
		}
	}
	return out
}

// Records returns one record per question, substituting the fallback record
// for slots that have no evaluation.
func (s State) Records() []evaluation.Record {
	out := make([]evaluation.Record, len(s.Questions))
	for i := range out {
		if i < len(s.Evaluations) && s.Evaluations[i] != nil {
			out[i] = s.Evaluations[i].Clone()
			continue
		}
		out[i] = evaluation.Fallback()
	}
	return out
}

func statuses(n int, status ItemStatus) []ItemStatus {
	out := make([]ItemStatus, n)
	for i := range out {
		out[i] = status
	}
	return out
}
