package template

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract for saved templates.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Template, int, error)
	ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Template, int, error)
}
