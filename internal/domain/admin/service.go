package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/domain/account"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/db"
)

// UserCreator is satisfied by *account.Service.
type UserCreator interface {
	CreateUser(ctx context.Context, email, password, role string) (*account.User, error)
}

// DoctorCreator is satisfied by *doctor.Service.
type DoctorCreator interface {
	Create(ctx context.Context, d *doctor.Doctor) error
}

// PatientCreator is satisfied by *patient.Service.
type PatientCreator interface {
	Create(ctx context.Context, in patient.CreateInput) (*patient.Patient, error)
}

type Service struct {
	admins   AdminRepository
	stats    StatsRepository
	tx       db.Transactor
	users    UserCreator
	doctors  DoctorCreator
	patients PatientCreator
	now      func() time.Time
}

func NewService(admins AdminRepository, stats StatsRepository, tx db.Transactor,
	users UserCreator, doctors DoctorCreator, patients PatientCreator) *Service {
	return &Service{
		admins:   admins,
		stats:    stats,
		tx:       tx,
		users:    users,
		doctors:  doctors,
		patients: patients,
		now:      time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return s.admins.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error) {
	return s.admins.GetByUserID(ctx, userID)
}

// CreateAdmin bootstraps an admin account. Used by the CLI.
func (s *Service) CreateAdmin(ctx context.Context, in CreateAdminInput) (*CreatedAdmin, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	var errs errsx.Map
	if in.FirstName == "" {
		errs.Set("first_name", "is required")
	}
	if in.LastName == "" {
		errs.Set("last_name", "is required")
	}
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	out := &CreatedAdmin{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.users.CreateUser(ctx, in.Email, in.Password, auth.RoleAdmin)
		if err != nil {
			return err
		}
		a := &Admin{UserID: u.ID, FirstName: in.FirstName, LastName: in.LastName}
		if err := s.admins.Create(ctx, a); err != nil {
			return err
		}
		out.User, out.Admin = u, a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDoctor creates the doctor's login and profile in one transaction.
func (s *Service) CreateDoctor(ctx context.Context, in CreateDoctorInput) (*CreatedDoctor, error) {
	out := &CreatedDoctor{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.users.CreateUser(ctx, in.Email, in.Password, auth.RoleDoctor)
		if err != nil {
			return err
		}
		d := &doctor.Doctor{
			UserID:         u.ID,
			LicenseNumber:  in.LicenseNumber,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Specialization: strings.TrimSpace(in.Specialization),
			Hospital:       strings.TrimSpace(in.Hospital),
			Phone:          in.Phone,
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return err
		}
		out.User, out.Doctor = u, d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePatient registers a patient on their behalf.
func (s *Service) CreatePatient(ctx context.Context, in CreatePatientInput) (*CreatedPatient, error) {
	out := &CreatedPatient{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		u, err := s.users.CreateUser(ctx, in.Email, in.Password, auth.RolePatient)
		if err != nil {
			return err
		}
		pin := in.CreateInput
		pin.UserID = u.ID
		p, err := s.patients.Create(ctx, pin)
		if err != nil {
			return err
		}
		out.User, out.Patient = u, p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	return s.stats.Stats(ctx, now, now.Add(-24*time.Hour))
}
