package sessions

import "errors"

var (
	ErrNotFound         = errors.New("session not found or expired")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTooManyQuestions = errors.New("too many questions")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrNoRedactedText   = errors.New("redacted text is empty")
	ErrNoAnswer         = errors.New("no answer for this question")
	ErrConflict         = errors.New("session changed concurrently")
	ErrUpstream         = errors.New("model call failed")
)
