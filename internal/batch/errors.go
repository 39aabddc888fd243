package batch

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySubmission = errors.New("submission has no items")
	ErrMalformedItem   = errors.New("malformed item id")
	ErrNilCapability   = errors.New("capability is required")
	ErrTaskNotFound    = errors.New("task missing or expired")
	ErrTaskTerminal    = errors.New("task already finished")
	ErrTaskNotRunning  = errors.New("task is not running")
	ErrCounterOverflow = errors.New("completed count would exceed total")
)

// IsSubmissionError reports whether err was returned synchronously by
// Submit because the request itself was invalid.
func IsSubmissionError(err error) bool {
	return errors.Is(err, ErrEmptySubmission) || errors.Is(err, ErrMalformedItem) || errors.Is(err, ErrNilCapability)
}

// ItemFailure lets a capability attach the item's title to its error.
type ItemFailure struct {
	Title string
	Err   error
}

func (f *ItemFailure) Error() string {
	if f.Title == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %v", f.Title, f.Err)
}

func (f *ItemFailure) Unwrap() error {
	return f.Err
}
