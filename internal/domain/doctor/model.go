package doctor

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrNoAssignment  = errors.New("doctor has no active assignment for this patient")
	ErrAlreadyEnded  = errors.New("assignment already ended")
	ErrUnknownParent = errors.New("doctor or patient does not exist")
)

// Doctor maps to the doctors table.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	LicenseNumber  string    `db:"license_number" json:"license_number"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Specialization string    `db:"specialization" json:"specialization"`
	Hospital       string    `db:"hospital" json:"hospital"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileUpdate holds the fields a doctor may change on their own profile.
type ProfileUpdate struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Specialization *string `json:"specialization"`
	Hospital       *string `json:"hospital"`
	Phone          *string `json:"phone"`
}

// Assignment maps to the assignments table.
type Assignment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DoctorID   uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	AssignedBy *uuid.UUID `db:"assigned_by" json:"assigned_by,omitempty"`
	Active     bool       `db:"active" json:"active"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	EndedAt    *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

type AssignmentFilter struct {
	DoctorID   *uuid.UUID
	PatientID  *uuid.UUID
	ActiveOnly bool
}

// AssignedPatient is a row of a doctor's patient list.
type AssignedPatient struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	UPI          string    `json:"upi"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Gender       string    `json:"gender"`
	AssignedAt   time.Time `json:"assigned_at"`
}
