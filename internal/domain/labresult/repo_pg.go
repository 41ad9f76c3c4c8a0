package labresult

import (
	"context"
	"fmt"

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
		return fmt.Errorf("%w: unknown patient, doctor or diagnosis", ErrInvalid)
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, patient_id, doctor_id, diagnosis_id, test_name, result_value, unit, reference_range,
	flag, notes, file_key, file_url, file_name, content_type, collected_at, created_at, updated_at`

func scan(row pgx.Row) (*LabResult, error) {
	var l LabResult
	err := row.Scan(&l.ID, &l.PatientID, &l.DoctorID, &l.DiagnosisID, &l.TestName, &l.ResultValue, &l.Unit, &l.ReferenceRange,
		&l.Flag, &l.Notes, &l.FileKey, &l.FileURL, &l.FileName, &l.ContentType, &l.CollectedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *repoPG) Create(ctx context.Context, l *LabResult) error {
	l.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_results (id, patient_id, doctor_id, diagnosis_id, test_name, result_value, unit,
			reference_range, flag, notes, file_key, file_url, file_name, content_type, collected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		l.ID, l.PatientID, l.DoctorID, l.DiagnosisID, l.TestName, l.ResultValue, l.Unit,
		l.ReferenceRange, l.Flag, l.Notes, l.FileKey, l.FileURL, l.FileName, l.ContentType, l.CollectedAt,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM lab_results WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, l *LabResult) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE lab_results SET test_name=$2, result_value=$3, unit=$4, reference_range=$5, flag=$6,
			notes=$7, collected_at=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		l.ID, l.TestName, l.ResultValue, l.Unit, l.ReferenceRange, l.Flag, l.Notes, l.CollectedAt,
	).Scan(&l.UpdatedAt)
	return mapErr(err)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM lab_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, flag string, limit, offset int) ([]*LabResult, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{patientID}
	if flag != "" {
		args = append(args, flag)
		where += fmt.Sprintf(` AND flag = $%d`, len(args))
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM lab_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + cols + ` FROM lab_results` + where +
		fmt.Sprintf(` ORDER BY COALESCE(collected_at, created_at) DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabResult
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListFileKeys(ctx context.Context) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT file_key FROM lab_results WHERE file_key IS NOT NULL ORDER BY created_at`)
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

func (r *repoPG) RewriteFileURL(ctx context.Context, key, url string) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE lab_results SET file_url = $2, updated_at = NOW() WHERE file_key = $1`, key, url)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
