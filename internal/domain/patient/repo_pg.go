package patient

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
		case "patients_upi_key":
			return ErrDuplicateUPI
		case "patients_national_id_key":
			return fmt.Errorf("%w: national id already registered", ErrConflict)
		case "patients_user_id_key":
			return fmt.Errorf("%w: user already has a patient profile", ErrConflict)
		case "allergies_patient_substance_key":
			return fmt.Errorf("%w: allergy already recorded", ErrConflict)
		}
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return ErrNotFound
	}
	return err
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, user_id, upi, national_id, first_name, last_name, date_of_birth, gender,
	phone, address, blood_type, allergies_legacy, photo_key, photo_url, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.UPI, &p.NationalID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Address, &p.BloodType, &p.AllergiesLegacy, &p.PhotoKey, &p.PhotoURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, upi, national_id, first_name, last_name, date_of_birth, gender,
			phone, address, blood_type, allergies_legacy)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.UPI, p.NationalID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Address, p.BloodType, p.AllergiesLegacy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
}

func (r *patientRepoPG) GetByUPI(ctx context.Context, upi string) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE upi = $1`, upi))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET phone=$2, address=$3, blood_type=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Phone, p.Address, p.BloodType,
	).Scan(&p.UpdatedAt)
	return mapErr(err)
}

func (r *patientRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if s := strings.TrimSpace(search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%", strings.ToUpper(s))
		where += ` AND (lower(first_name) LIKE $1 OR lower(last_name) LIKE $1 OR upi = $2 OR national_id = $2)`
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + patientCols + ` FROM patients` + where +
		fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) ClearLegacyAllergies(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET allergies_legacy = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) SetPhoto(ctx context.Context, id uuid.UUID, key, url *string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET photo_key = $2, photo_url = $3, updated_at = NOW() WHERE id = $1`, id, key, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) ListPhotoKeys(ctx context.Context) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT photo_key FROM patients WHERE photo_key IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *patientRepoPG) RewritePhotoURL(ctx context.Context, key, url string) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET photo_url = $2, updated_at = NOW() WHERE photo_key = $1`, key, url)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Emergency Info Repository ===========

type emergencyInfoRepoPG struct{ pool *pgxpool.Pool }

func NewEmergencyInfoRepoPG(pool *pgxpool.Pool) EmergencyInfoRepository {
	return &emergencyInfoRepoPG{pool: pool}
}

const emergencyInfoCols = `patient_id, blood_type_visible, allergies_visible, chronic_conditions, conditions_visible,
	current_medications, medications_visible, emergency_contact_name, emergency_contact_phone,
	emergency_contact_visible, notes, notes_visible, organ_donor, organ_donor_visible, updated_at`

func (r *emergencyInfoRepoPG) Get(ctx context.Context, patientID uuid.UUID) (*EmergencyInfo, error) {
	var e EmergencyInfo
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+emergencyInfoCols+` FROM emergency_info WHERE patient_id = $1`, patientID).Scan(
		&e.PatientID, &e.BloodTypeVisible, &e.AllergiesVisible, &e.ChronicConditions, &e.ConditionsVisible,
		&e.CurrentMedications, &e.MedicationsVisible, &e.EmergencyContactName, &e.EmergencyContactPhone,
		&e.EmergencyContactVisible, &e.Notes, &e.NotesVisible, &e.OrganDonor, &e.OrganDonorVisible, &e.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *emergencyInfoRepoPG) CreateDefault(ctx context.Context, e *EmergencyInfo) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO emergency_info (patient_id, blood_type_visible, allergies_visible, emergency_contact_visible)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (patient_id) DO NOTHING`,
		e.PatientID, e.BloodTypeVisible, e.AllergiesVisible, e.EmergencyContactVisible)
	return mapErr(err)
}

func (r *emergencyInfoRepoPG) Update(ctx context.Context, e *EmergencyInfo) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE emergency_info SET blood_type_visible=$2, allergies_visible=$3, chronic_conditions=$4,
			conditions_visible=$5, current_medications=$6, medications_visible=$7,
			emergency_contact_name=$8, emergency_contact_phone=$9, emergency_contact_visible=$10,
			notes=$11, notes_visible=$12, organ_donor=$13, organ_donor_visible=$14, updated_at=NOW()
		WHERE patient_id = $1
		RETURNING updated_at`,
		e.PatientID, e.BloodTypeVisible, e.AllergiesVisible, e.ChronicConditions,
		e.ConditionsVisible, e.CurrentMedications, e.MedicationsVisible,
		e.EmergencyContactName, e.EmergencyContactPhone, e.EmergencyContactVisible,
		e.Notes, e.NotesVisible, e.OrganDonor, e.OrganDonorVisible,
	).Scan(&e.UpdatedAt)
	return mapErr(err)
}

// =========== Allergy Repository ===========

type allergyRepoPG struct{ pool *pgxpool.Pool }

func NewAllergyRepoPG(pool *pgxpool.Pool) AllergyRepository { return &allergyRepoPG{pool: pool} }

const allergyCols = `id, patient_id, substance, severity, reaction, created_at`

func scanAllergy(row pgx.Row) (*Allergy, error) {
	var a Allergy
	if err := row.Scan(&a.ID, &a.PatientID, &a.Substance, &a.Severity, &a.Reaction, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO allergies (id, patient_id, substance, severity, reaction)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Substance, a.Severity, a.Reaction,
	).Scan(&a.CreatedAt)
	return mapErr(err)
}

func (r *allergyRepoPG) CreateMany(ctx context.Context, items []*Allergy) error {
	for _, a := range items {
		a.ID = uuid.New()
		if _, err := db.Conn(ctx, r.pool).Exec(ctx, `
			INSERT INTO allergies (id, patient_id, substance, severity, reaction)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`,
			a.ID, a.PatientID, a.Substance, a.Severity, a.Reaction); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *allergyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Allergy, error) {
	return scanAllergy(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+allergyCols+` FROM allergies WHERE id = $1`, id))
}

func (r *allergyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM allergies WHERE id = $1`, id)
	return err
}

func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+allergyCols+` FROM allergies WHERE patient_id = $1 ORDER BY created_at, substance`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		a, err := scanAllergy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
