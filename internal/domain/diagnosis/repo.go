package diagnosis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	// Update writes the editable fields only while the row is PENDING and
	// returns ErrLocked otherwise.
	Update(ctx context.Context, d *Diagnosis) error
	// Transition moves a diagnosis from one status to another and returns
	// ErrLocked when the row is no longer in from.
	Transition(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) (*Diagnosis, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Diagnosis, int, error)
}
