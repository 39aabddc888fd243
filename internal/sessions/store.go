package sessions

import "context"

// Store persists sessions. Update applies fn to a copy of the stored session
// and saves the result atomically; an error from fn leaves the session as it
// was.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
	Delete(ctx context.Context, id string) error
}
