package labresult

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("lab result not found")
	ErrNoFile    = errors.New("lab result has no attached file")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("not allowed to access this lab result")
)

const (
	FlagNormal   = "normal"
	FlagAbnormal = "abnormal"
	FlagCritical = "critical"
)

var validFlags = map[string]bool{FlagNormal: true, FlagAbnormal: true, FlagCritical: true}

// LabResult maps to the lab_results table. FileKey locates the attachment
// in blob storage and is never exposed.
type LabResult struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	DiagnosisID    *uuid.UUID `db:"diagnosis_id" json:"diagnosis_id,omitempty"`
	TestName       string     `db:"test_name" json:"test_name"`
	ResultValue    string     `db:"result_value" json:"result_value"`
	Unit           *string    `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string    `db:"reference_range" json:"reference_range,omitempty"`
	Flag           string     `db:"flag" json:"flag"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	FileKey        *string    `db:"file_key" json:"-"`
	FileURL        *string    `db:"file_url" json:"file_url,omitempty"`
	FileName       *string    `db:"file_name" json:"file_name,omitempty"`
	ContentType    *string    `db:"content_type" json:"content_type,omitempty"`
	CollectedAt    *time.Time `db:"collected_at" json:"collected_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// HasFile reports whether a document is attached.
func (l *LabResult) HasFile() bool { return l.FileKey != nil && *l.FileKey != "" }

// Update holds the author-editable fields. Nil leaves a field unchanged.
type Update struct {
	TestName       *string    `json:"test_name"`
	ResultValue    *string    `json:"result_value"`
	Unit           *string    `json:"unit"`
	ReferenceRange *string    `json:"reference_range"`
	Flag           *string    `json:"flag"`
	Notes          *string    `json:"notes"`
	CollectedAt    *time.Time `json:"collected_at"`
}

// Attachment is an uploaded document to store alongside a result.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}
