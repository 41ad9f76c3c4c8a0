package diagnosis

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("diagnosis not found")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("not allowed to access this diagnosis")
	// ErrLocked is returned when the diagnosis is not in the status the
	// operation requires, e.g. editing or completing a completed diagnosis.
	ErrLocked = errors.New("diagnosis is locked")
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

var validSeverities = map[string]bool{"mild": true, "moderate": true, "severe": true, "critical": true}

// Diagnosis maps to the diagnoses table.
type Diagnosis struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	ICDCode     *string    `db:"icd_code" json:"icd_code,omitempty"`
	Severity    *string    `db:"severity" json:"severity,omitempty"`
	Status      string     `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Update holds the author-editable fields. Nil leaves a field unchanged.
type Update struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ICDCode     *string `json:"icd_code"`
	Severity    *string `json:"severity"`
}

type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
}
