package sessions

import (
	"time"

	"justicebench/internal/evaluation"
	"justicebench/internal/llm"
)

// MaxQuestions caps the questions a session may hold.
const MaxQuestions = 10

// Session is the server-side state of one evaluation workflow. Answers and
// Evaluations run parallel to Questions; a nil slot has not been produced.
type Session struct {
	ID           string               `json:"session_id"`
	FileName     string               `json:"file_name"`
	SourceKey    string               `json:"source_key,omitempty"`
	SourceSHA256 string               `json:"source_sha256,omitempty"`
	RawText      string               `json:"text"`
	RedactedText string               `json:"redacted_text"`
	MaskMode     string               `json:"mask_mode,omitempty"`
	Questions    []string             `json:"questions"`
	Answers      []*llm.Answer        `json:"answers"`
	Evaluations  []*evaluation.Record `json:"evaluations"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (s Session) clone() Session {
	out := s
	out.Questions = append([]string(nil), s.Questions...)
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

// resizeSlots keeps Answers and Evaluations parallel to Questions. A slot
// survives only when its question is unchanged.
func (s *Session) resizeSlots(previous []string) {
	answers := make([]*llm.Answer, len(s.Questions))
	evals := make([]*evaluation.Record, len(s.Questions))
	for i, q := range s.Questions {
		if i < len(previous) && previous[i] == q {
			if i < len(s.Answers) {
				answers[i] = s.Answers[i]
			}
			if i < len(s.Evaluations) {
				evals[i] = s.Evaluations[i]
			}
		}
	}
	s.Answers = answers
	s.Evaluations = evals
}
