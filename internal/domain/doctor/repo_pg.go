package doctor

import (
	"context"
	"fmt"
	"strings"

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
		switch db.ConstraintName(err) {
		case "doctors_license_number_key":
			return fmt.Errorf("%w: license number already registered", ErrConflict)
		case "assignments_active_pair_key":
			return fmt.Errorf("%w: doctor is already assigned to this patient", ErrConflict)
		case "doctors_user_id_key":
			return fmt.Errorf("%w: user already has a doctor profile", ErrConflict)
		}
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return ErrUnknownParent
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `id, user_id, license_number, first_name, last_name, specialization,
	hospital, phone, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.LicenseNumber, &d.FirstName, &d.LastName, &d.Specialization,
		&d.Hospital, &d.Phone, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, license_number, first_name, last_name, specialization, hospital, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.LicenseNumber, d.FirstName, d.LastName, d.Specialization, d.Hospital, d.Phone,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return mapErr(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET first_name=$2, last_name=$3, specialization=$4, hospital=$5, phone=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Hospital, d.Phone,
	).Scan(&d.UpdatedAt)
	return mapErr(err)
}

func (r *doctorRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if s := strings.TrimSpace(search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		where += ` AND (lower(first_name) LIKE $1 OR lower(last_name) LIKE $1 OR lower(specialization) LIKE $1 OR license_number ILIKE $1)`
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + doctorCols + ` FROM doctors` + where +
		fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

const assignmentCols = `id, doctor_id, patient_id, assigned_by, active, notes, assigned_at, ended_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.AssignedBy, &a.Active, &a.Notes, &a.AssignedAt, &a.EndedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	a.Active = true
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO assignments (id, doctor_id, patient_id, assigned_by, active, notes)
		VALUES ($1,$2,$3,$4,TRUE,$5)
		RETURNING assigned_at`,
		a.ID, a.DoctorID, a.PatientID, a.AssignedBy, a.Notes,
	).Scan(&a.AssignedAt)
	return mapErr(err)
}

func (r *assignmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return scanAssignment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id = $1`, id))
}

func (r *assignmentRepoPG) End(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE assignments SET active = FALSE, ended_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyEnded
	}
	return nil
}

func (r *assignmentRepoPG) List(ctx context.Context, f AssignmentFilter, limit, offset int) ([]*Assignment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.ActiveOnly {
		where += ` AND active`
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM assignments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assignmentCols + ` FROM assignments` + where +
		fmt.Sprintf(` ORDER BY assigned_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *assignmentRepoPG) HasActive(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignments WHERE doctor_id = $1 AND patient_id = $2 AND active)`,
		doctorID, patientID).Scan(&ok)
	return ok, err
}

func (r *assignmentRepoPG) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AssignedPatient, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE doctor_id = $1 AND active`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT a.id, p.id, p.upi, p.first_name, p.last_name, p.date_of_birth, p.gender, a.assigned_at
		FROM assignments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1 AND a.active
		ORDER BY p.last_name, p.first_name
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AssignedPatient
	for rows.Next() {
		var p AssignedPatient
		if err := rows.Scan(&p.AssignmentID, &p.PatientID, &p.UPI, &p.FirstName, &p.LastName,
			&p.DateOfBirth, &p.Gender, &p.AssignedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, rows.Err()
}

func (r *assignmentRepoPG) ListDoctorsForPatient(ctx context.Context, patientID uuid.UUID) ([]*Doctor, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT d.id, d.user_id, d.license_number, d.first_name, d.last_name, d.specialization,
			d.hospital, d.phone, d.created_at, d.updated_at
		FROM assignments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1 AND a.active
		ORDER BY d.last_name, d.first_name`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
