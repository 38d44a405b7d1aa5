package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	ListByDate(ctx context.Context, date string) ([]*Appointment, error)
	// SlotTaken reports whether another active appointment starts at date and
	// time. excludeID is ignored when uuid.Nil.
	SlotTaken(ctx context.Context, date, at string, excludeID uuid.UUID) (bool, error)
}
