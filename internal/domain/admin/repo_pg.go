package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthnet/healthnet/internal/platform/db"
)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: user already has an admin profile", ErrConflict)
	}
	return err
}

type adminRepoPG struct{ pool *pgxpool.Pool }

func NewAdminRepoPG(pool *pgxpool.Pool) AdminRepository { return &adminRepoPG{pool: pool} }

const adminCols = `id, user_id, first_name, last_name, created_at`

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO admins (id, user_id, first_name, last_name)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		a.ID, a.UserID, a.FirstName, a.LastName,
	).Scan(&a.CreatedAt)
	return mapErr(err)
}

func (r *adminRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE id = $1`, id))
}

func (r *adminRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE user_id = $1`, userID))
}

type statsRepoPG struct{ pool *pgxpool.Pool }

func NewStatsRepoPG(pool *pgxpool.Pool) StatsRepository { return &statsRepoPG{pool: pool} }

func (r *statsRepoPG) Stats(ctx context.Context, now, since time.Time) (*Stats, error) {
	var s Stats
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients),
			(SELECT COUNT(*) FROM doctors),
			(SELECT COUNT(*) FROM assignments WHERE active),
			(SELECT COUNT(*) FROM diagnoses WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM appointments WHERE status = 'SCHEDULED' AND scheduled_at > $1),
			(SELECT COUNT(*) FROM scan_history WHERE scanned_at >= $2)`,
		now, since,
	).Scan(&s.Patients, &s.Doctors, &s.ActiveAssignments, &s.PendingDiagnoses, &s.UpcomingAppointments, &s.ScansLast24h)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	s.GeneratedAt = now
	return &s, nil
}
