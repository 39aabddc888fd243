package cases

import "time"

// Case is a stored legal case. JudgeDecision is optional; when present it is
// the reference that AI decisions are compared against.
type Case struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Text          string    `json:"case_text"`
	JudgeDecision string    `json:"judge_decision,omitempty"`
	DecidedOn     string    `json:"decided_on,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
