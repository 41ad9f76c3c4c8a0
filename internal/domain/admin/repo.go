package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error)
}

// StatsRepository computes dashboard counts. Appointments are upcoming when
// scheduled after now; scans are counted from since.
type StatsRepository interface {
	Stats(ctx context.Context, now, since time.Time) (*Stats, error)
}
