package admin

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/account"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/patient"
)

var (
	ErrNotFound = errors.New("admin not found")
	ErrInvalid  = errors.New("invalid input")
	ErrConflict = errors.New("conflict")
)

// Admin maps to the admins table.
type Admin struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Patients             int       `json:"patients"`
	Doctors              int       `json:"doctors"`
	ActiveAssignments    int       `json:"active_assignments"`
	PendingDiagnoses     int       `json:"pending_diagnoses"`
	UpcomingAppointments int       `json:"upcoming_appointments"`
	ScansLast24h         int       `json:"scans_last_24h"`
	GeneratedAt          time.Time `json:"generated_at"`
}

type CreateAdminInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateDoctorInput struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	LicenseNumber  string  `json:"license_number"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Specialization string  `json:"specialization"`
	Hospital       string  `json:"hospital"`
	Phone          *string `json:"phone,omitempty"`
}

type CreatePatientInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	patient.CreateInput
}

// CreatedDoctor is a new doctor account and its profile.
type CreatedDoctor struct {
	User   *account.User  `json:"user"`
	Doctor *doctor.Doctor `json:"doctor"`
}

// CreatedPatient is a new patient account and its profile.
type CreatedPatient struct {
	User    *account.User    `json:"user"`
	Patient *patient.Patient `json:"patient"`
}

// CreatedAdmin is a new admin account and its profile.
type CreatedAdmin struct {
	User  *account.User `json:"user"`
	Admin *Admin        `json:"admin"`
}
