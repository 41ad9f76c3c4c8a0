package labresult

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *LabResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error)
	Update(ctx context.Context, l *LabResult) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, flag string, limit, offset int) ([]*LabResult, int, error)
	ListFileKeys(ctx context.Context) ([]string, error)
	RewriteFileURL(ctx context.Context, key, url string) (int64, error)
}
