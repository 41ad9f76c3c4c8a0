package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// LockDoctor serialises bookings for one doctor until the surrounding
	// transaction ends.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error
	// HasOverlap reports whether the doctor has a SCHEDULED appointment
	// intersecting [start, end), ignoring exclude.
	HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error)
	// SetStatus moves a SCHEDULED appointment to status and returns
	// ErrNotScheduled if it is no longer SCHEDULED.
	SetStatus(ctx context.Context, id uuid.UUID, status string, notes *string, cancelledBy *uuid.UUID) (*Appointment, error)
	// Reschedule moves a SCHEDULED appointment and returns ErrNotScheduled
	// if it is no longer SCHEDULED.
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time, durationMinutes int) (*Appointment, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
