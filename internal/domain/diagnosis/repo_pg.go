package diagnosis

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

var errUnknownParent = fmt.Errorf("%w: unknown patient or doctor", ErrInvalid)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsForeignKeyViolation(err):
		return errUnknownParent
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, patient_id, doctor_id, title, description, icd_code, severity, status,
	completed_at, created_at, updated_at`

func scan(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	err := row.Scan(&d.ID, &d.PatientID, &d.DoctorID, &d.Title, &d.Description, &d.ICDCode, &d.Severity, &d.Status,
		&d.CompletedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO diagnoses (id, patient_id, doctor_id, title, description, icd_code, severity, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		d.ID, d.PatientID, d.DoctorID, d.Title, d.Description, d.ICDCode, d.Severity, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Diagnosis) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE diagnoses SET title=$2, description=$3, icd_code=$4, severity=$5, updated_at=NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING updated_at`,
		d.ID, d.Title, d.Description, d.ICDCode, d.Severity,
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLocked
	}
	return mapErr(err)
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) (*Diagnosis, error) {
	d, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE diagnoses SET status=$3, completed_at=$4, updated_at=NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+cols, id, from, to, completedAt))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrLocked
	}
	return d, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Diagnosis, int, error) {
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
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + cols + ` FROM diagnoses` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
