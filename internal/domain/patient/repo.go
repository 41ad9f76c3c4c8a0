package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	// Create returns ErrDuplicateUPI when the generated UPI collides.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	GetByUPI(ctx context.Context, upi string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	ClearLegacyAllergies(ctx context.Context, id uuid.UUID) error
	SetPhoto(ctx context.Context, id uuid.UUID, key, url *string) error
	ListPhotoKeys(ctx context.Context) ([]string, error)
	RewritePhotoURL(ctx context.Context, key, url string) (int64, error)
}

type EmergencyInfoRepository interface {
	Get(ctx context.Context, patientID uuid.UUID) (*EmergencyInfo, error)
	// CreateDefault inserts the default row unless one already exists.
	CreateDefault(ctx context.Context, info *EmergencyInfo) error
	Update(ctx context.Context, info *EmergencyInfo) error
}

type AllergyRepository interface {
	Create(ctx context.Context, a *Allergy) error
	// CreateMany skips substances the patient already has.
	CreateMany(ctx context.Context, items []*Allergy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Allergy, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
}
