package cases

import "context"

// Repo defines persistence operations for cases.
type Repo interface {
	Create(ctx context.Context, c Case) error
	GetByID(ctx context.Context, id string) (Case, error)
	// GetMany returns the cases that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]Case, error)
	List(ctx context.Context, limit, offset int) ([]Case, error)
	Delete(ctx context.Context, id string) error
}
