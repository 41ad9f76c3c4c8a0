package doctor

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, search string, limit, offset int) ([]*Doctor, int, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)
	// End deactivates an active assignment. It returns ErrAlreadyEnded when
	// the row is no longer active.
	End(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f AssignmentFilter, limit, offset int) ([]*Assignment, int, error)
	HasActive(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AssignedPatient, int, error)
	ListDoctorsForPatient(ctx context.Context, patientID uuid.UUID) ([]*Doctor, error)
}
