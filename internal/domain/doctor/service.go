package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"
)

type Service struct {
	doctors     DoctorRepository
	assignments AssignmentRepository
}

func NewService(doctors DoctorRepository, assignments AssignmentRepository) *Service {
	return &Service{doctors: doctors, assignments: assignments}
}

// -- Doctor --

func (s *Service) Create(ctx context.Context, d *Doctor) error {
	d.LicenseNumber = strings.TrimSpace(d.LicenseNumber)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)

	var errs errsx.Map
	if d.UserID == uuid.Nil {
		errs.Set("user_id", "is required")
	}
	if d.LicenseNumber == "" {
		errs.Set("license_number", "is required")
	}
	if d.FirstName == "" {
		errs.Set("first_name", "is required")
	}
	if d.LastName == "" {
		errs.Set("last_name", "is required")
	}
	if !errs.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, search, limit, offset)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.FirstName != nil {
		d.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		d.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.Specialization != nil {
		d.Specialization = strings.TrimSpace(*u.Specialization)
	}
	if u.Hospital != nil {
		d.Hospital = strings.TrimSpace(*u.Hospital)
	}
	if u.Phone != nil {
		phone := strings.TrimSpace(*u.Phone)
		d.Phone = &phone
		if phone == "" {
			d.Phone = nil
		}
	}
	if d.FirstName == "" || d.LastName == "" {
		return nil, fmt.Errorf("%w: first_name and last_name cannot be empty", ErrInvalid)
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// -- Assignments --

// Assign links a doctor to a patient. assignedBy is the admin profile id.
func (s *Service) Assign(ctx context.Context, doctorID, patientID uuid.UUID, assignedBy *uuid.UUID, notes string) (*Assignment, error) {
	var errs errsx.Map
	if doctorID == uuid.Nil {
		errs.Set("doctor_id", "is required")
	}
	if patientID == uuid.Nil {
		errs.Set("patient_id", "is required")
	}
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	a := &Assignment{DoctorID: doctorID, PatientID: patientID, AssignedBy: assignedBy}
	if n := strings.TrimSpace(notes); n != "" {
		a.Notes = &n
	}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) EndAssignment(ctx context.Context, id uuid.UUID) error {
	a, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !a.Active {
		return ErrAlreadyEnded
	}
	return s.assignments.End(ctx, id)
}

func (s *Service) ListAssignments(ctx context.Context, f AssignmentFilter, limit, offset int) ([]*Assignment, int, error) {
	return s.assignments.List(ctx, f, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*AssignedPatient, int, error) {
	return s.assignments.ListPatients(ctx, doctorID, limit, offset)
}

func (s *Service) ListDoctorsForPatient(ctx context.Context, patientID uuid.UUID) ([]*Doctor, error) {
	return s.assignments.ListDoctorsForPatient(ctx, patientID)
}

// CheckAccess returns ErrNoAssignment unless the doctor currently has an
// active assignment for the patient.
func (s *Service) CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error {
	ok, err := s.assignments.HasActive(ctx, doctorID, patientID)
	if err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if !ok {
		return ErrNoAssignment
	}
	return nil
}

// IsNoAssignment reports whether err came from a failed CheckAccess.
func IsNoAssignment(err error) bool {
	return errors.Is(err, ErrNoAssignment)
}
