package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/db"
)

// ProfileResolver finds the admin, doctor or patient row owned by a user.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, userID uuid.UUID, role string) (uuid.UUID, error)
}

// PatientCreator creates the patient profile during self sign-up.
type PatientCreator interface {
	Create(ctx context.Context, in patient.CreateInput) (*patient.Patient, error)
}

// Revoker invalidates every token issued to a user.
type Revoker interface {
	RevokeUser(userID string, ttl time.Duration)
}

var validRoles = map[string]bool{auth.RoleAdmin: true, auth.RoleDoctor: true, auth.RolePatient: true}

type Service struct {
	users    UserRepository
	tx       db.Transactor
	tokens   *auth.TokenIssuer
	profiles ProfileResolver
	patients PatientCreator
	revoker  Revoker
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(users UserRepository, tx db.Transactor, tokens *auth.TokenIssuer, tokenTTL time.Duration,
	profiles ProfileResolver, patients PatientCreator, revoker Revoker) *Service {
	return &Service{
		users:    users,
		tx:       tx,
		tokens:   tokens,
		profiles: profiles,
		patients: patients,
		revoker:  revoker,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same bcrypt time as a real comparison so
// unknown emails are not distinguishable by latency.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("healthnet-unknown-user")
	})
	auth.CheckPassword(dummyHash, password)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login verifies credentials and issues an access token carrying the
// caller's role and profile id.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) || !u.Active {
		return nil, ErrInvalidCredentials
	}

	profileID, err := s.profiles.ResolveProfile(ctx, u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("resolve %s profile: %w", u.Role, err)
	}
	session, err := s.session(u, profileID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return session, nil
}

func (s *Service) session(u *User, profileID uuid.UUID) (*Session, error) {
	pid := ""
	if profileID != uuid.Nil {
		pid = profileID.String()
	}
	tok, err := s.tokens.Issue(u.ID.String(), u.Role, pid)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{IssuedToken: tok, User: u, ProfileID: profileID}, nil
}

// CreateUser validates and stores a new active user.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*User, error) {
	email = normalizeEmail(email)

	var errs errsx.Map
	if email == "" {
		errs.Set("email", "is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs.Set("email", "is not a valid address")
	}
	if len(password) < auth.MinPasswordLength {
		errs.Set("password", fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	}
	if !validRoles[role] {
		errs.Set("role", "must be admin, doctor or patient")
	}
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{Email: email, PasswordHash: hash, Role: role, Active: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RegisterPatient creates a patient user and profile in one transaction and
// signs the new patient in.
func (s *Service) RegisterPatient(ctx context.Context, in RegisterInput) (*Session, error) {
	var (
		u *User
		p *patient.Patient
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.CreateUser(ctx, in.Email, in.Password, auth.RolePatient)
		if err != nil {
			return err
		}
		pin := in.CreateInput
		pin.UserID = u.ID
		p, err = s.patients.Create(ctx, pin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.session(u, p.ID)
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < auth.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, auth.MinPasswordLength)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// SetActive enables or disables a user. Disabling revokes every token the
// user currently holds. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) (*User, error) {
	if actorID == userID && !active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrInvalid)
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return nil, err
	}
	if !active && s.revoker != nil {
		s.revoker.RevokeUser(userID.String(), s.tokenTTL)
	}
	return s.users.GetByID(ctx, userID)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	return s.users.List(ctx, role, limit, offset)
}
