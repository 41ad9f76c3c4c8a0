package account

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalid            = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User maps to the users table.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Session is returned by Login and RegisterPatient.
type Session struct {
	*auth.IssuedToken
	User      *User     `json:"user"`
	ProfileID uuid.UUID `json:"profile_id"`
}

// RegisterInput is a patient self sign-up.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	patient.CreateInput
}
