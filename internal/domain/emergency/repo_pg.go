package emergency

import (
	"context"
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
	case db.IsUniqueViolation(err) && db.ConstraintName(err) == "qr_codes_one_active_key":
		return ErrConflict
	}
	return err
}

// -- QR codes --

type codeRepoPG struct{ pool *pgxpool.Pool }

func NewCodeRepoPG(pool *pgxpool.Pool) CodeRepository { return &codeRepoPG{pool: pool} }

const codeCols = `id, patient_id, code, active, created_at, revoked_at`

func scanCode(row pgx.Row) (*QRCode, error) {
	var q QRCode
	if err := row.Scan(&q.ID, &q.PatientID, &q.Code, &q.Active, &q.CreatedAt, &q.RevokedAt); err != nil {
		return nil, mapErr(err)
	}
	return &q, nil
}

func (r *codeRepoPG) Create(ctx context.Context, q *QRCode) error {
	q.ID = uuid.New()
	q.Active = true
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO qr_codes (id, patient_id, code, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING created_at`,
		q.ID, q.PatientID, q.Code,
	).Scan(&q.CreatedAt)
	return mapErr(err)
}

func (r *codeRepoPG) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*QRCode, error) {
	return scanCode(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+codeCols+` FROM qr_codes WHERE patient_id = $1 AND active`, patientID))
}

func (r *codeRepoPG) GetActiveByCode(ctx context.Context, code string) (*QRCode, error) {
	return scanCode(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+codeCols+` FROM qr_codes WHERE code = $1 AND active`, code))
}

func (r *codeRepoPG) RevokeActive(ctx context.Context, patientID uuid.UUID, at time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE qr_codes SET active = FALSE, revoked_at = $2 WHERE patient_id = $1 AND active`, patientID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// -- Scan history --

type scanRepoPG struct{ pool *pgxpool.Pool }

func NewScanRepoPG(pool *pgxpool.Pool) ScanRepository { return &scanRepoPG{pool: pool} }

func (r *scanRepoPG) Record(ctx context.Context, s *Scan) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO scan_history (id, qr_code_id, patient_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING scanned_at`,
		s.ID, s.QRCodeID, s.PatientID, s.IPAddress, s.UserAgent,
	).Scan(&s.ScannedAt)
}

func (r *scanRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Scan, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM scan_history WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, qr_code_id, patient_id, scanned_at, ip_address, user_agent
		FROM scan_history WHERE patient_id = $1
		ORDER BY scanned_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.ID, &s.QRCodeID, &s.PatientID, &s.ScannedAt, &s.IPAddress, &s.UserAgent); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}

func (r *scanRepoPG) CountSince(ctx context.Context, patientID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM scan_history WHERE patient_id = $1 AND scanned_at >= $2`, patientID, since).Scan(&n)
	return n, err
}
