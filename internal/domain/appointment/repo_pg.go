package appointment

import (
	"context"
	"errors"
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
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown patient or doctor", ErrInvalid)
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, patient_id, doctor_id, scheduled_at, duration_minutes, reason, status, notes,
	cancelled_by, created_at, updated_at`

func scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.DurationMinutes, &a.Reason, &a.Status, &a.Notes,
		&a.CancelledBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, duration_minutes, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.DurationMinutes, a.Reason, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	var id uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&id)
	if db.IsNoRows(err) {
		return fmt.Errorf("%w: unknown doctor", ErrInvalid)
	}
	return err
}

func (r *repoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND status = 'SCHEDULED'
			  AND scheduled_at < $3
			  AND scheduled_at + make_interval(mins => duration_minutes) > $2
			  AND ($4::uuid IS NULL OR id <> $4)
		)`, doctorID, start, end, exclude,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, notes *string, cancelledBy *uuid.UUID) (*Appointment, error) {
	a, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET status=$2, notes=COALESCE($3, notes), cancelled_by=$4, updated_at=NOW()
		WHERE id = $1 AND status = 'SCHEDULED'
		RETURNING `+cols, id, status, notes, cancelledBy))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotScheduled
	}
	return a, err
}

func (r *repoPG) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, durationMinutes int) (*Appointment, error) {
	a, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET scheduled_at=$2, duration_minutes=$3, updated_at=NOW()
		WHERE id = $1 AND status = 'SCHEDULED'
		RETURNING `+cols, id, at, durationMinutes))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotScheduled
	}
	return a, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where += fmt.Sprintf(` AND doctor_id = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(` AND scheduled_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(` AND scheduled_at < $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + cols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY scheduled_at LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
