package emergency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CodeRepository interface {
	Create(ctx context.Context, q *QRCode) error
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*QRCode, error)
	GetActiveByCode(ctx context.Context, code string) (*QRCode, error)
	// RevokeActive deactivates the patient's active code, if any, and
	// reports how many rows changed.
	RevokeActive(ctx context.Context, patientID uuid.UUID, at time.Time) (int64, error)
}

type ScanRepository interface {
	Record(ctx context.Context, s *Scan) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Scan, int, error)
	CountSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int, error)
}
