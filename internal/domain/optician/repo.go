package optician

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Optician) error
	GetByID(ctx context.Context, id uuid.UUID) (*Optician, error)
	Update(ctx context.Context, o *Optician) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Optician, int, error)
}
