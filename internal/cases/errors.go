package cases

import "errors"

var (
	ErrNotFound    = errors.New("case not found")
	ErrInvalidCase = errors.New("case title and text are required")
)
