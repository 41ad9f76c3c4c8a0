package diagnosis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/platform/auth"
)

// AccessChecker reports whether a doctor has an active assignment to a
// patient. Satisfied by *doctor.Service.
type AccessChecker interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
}

type Service struct {
	repo   Repository
	access AccessChecker
	now    func() time.Time
}

func NewService(repo Repository, access AccessChecker) *Service {
	return &Service{repo: repo, access: access, now: time.Now}
}

// transitions lists the statuses each status may move to.
var transitions = map[string][]string{
	StatusPending:   {StatusCompleted},
	StatusCompleted: {StatusPending},
}

// ValidateTransition returns ErrLocked unless from may move to to.
func ValidateTransition(from, to string) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrLocked, from, to)
}

func (s *Service) checkDoctor(ctx context.Context, doctorID, patientID uuid.UUID) error {
	err := s.access.CheckAccess(ctx, doctorID, patientID)
	if doctor.IsNoAssignment(err) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}

// authorizeRead lets admins, the patient themself and doctors with an
// active assignment read the patient's diagnoses.
func (s *Service) authorizeRead(ctx context.Context, actor auth.Actor, patientID uuid.UUID) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsPatient():
		if actor.ProfileID == patientID {
			return nil
		}
	case actor.IsDoctor():
		return s.checkDoctor(ctx, actor.ProfileID, patientID)
	}
	return ErrForbidden
}

func normalize(d *Diagnosis) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.ICDCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*d.ICDCode))
		d.ICDCode = &code
		if code == "" {
			d.ICDCode = nil
		}
	}
	if d.Severity != nil {
		sev := strings.ToLower(strings.TrimSpace(*d.Severity))
		d.Severity = &sev
		if sev == "" {
			d.Severity = nil
		}
	}
}

func validate(d *Diagnosis) error {
	var errs errsx.Map
	if d.Title == "" {
		errs.Set("title", "is required")
	} else if len(d.Title) > 200 {
		errs.Set("title", "must be at most 200 characters")
	}
	if d.ICDCode != nil && len(*d.ICDCode) > 16 {
		errs.Set("icd_code", "must be at most 16 characters")
	}
	if d.Severity != nil && !validSeverities[*d.Severity] {
		errs.Set("severity", "must be mild, moderate, severe or critical")
	}
	if !errs.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}
	return nil
}

// Create records a new PENDING diagnosis authored by the calling doctor.
func (s *Service) Create(ctx context.Context, actor auth.Actor, d *Diagnosis) error {
	if !actor.IsDoctor() {
		return ErrForbidden
	}
	if err := s.checkDoctor(ctx, actor.ProfileID, d.PatientID); err != nil {
		return err
	}
	d.DoctorID = actor.ProfileID
	d.Status = StatusPending
	d.CompletedAt = nil
	normalize(d)
	if err := validate(d); err != nil {
		return err
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Diagnosis, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, d.PatientID); err != nil {
		return nil, err
	}
	return d, nil
}

// Update edits a PENDING diagnosis. Only the authoring doctor may edit.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, u Update) (*Diagnosis, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() || actor.ProfileID != d.DoctorID {
		return nil, fmt.Errorf("%w: only the authoring doctor may edit", ErrForbidden)
	}
	if d.Status != StatusPending {
		return nil, fmt.Errorf("%w: completed diagnoses cannot be edited", ErrLocked)
	}
	cp := *d
	d = &cp

	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.ICDCode != nil {
		d.ICDCode = u.ICDCode
	}
	if u.Severity != nil {
		d.Severity = u.Severity
	}
	normalize(d)
	if err := validate(d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Complete moves a PENDING diagnosis to COMPLETED. Any doctor with an active
// assignment to the patient may complete it.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Diagnosis, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() {
		return nil, ErrForbidden
	}
	if err := s.checkDoctor(ctx, actor.ProfileID, d.PatientID); err != nil {
		return nil, err
	}
	if err := ValidateTransition(d.Status, StatusCompleted); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return s.repo.Transition(ctx, id, StatusPending, StatusCompleted, &now)
}

// Reopen moves a COMPLETED diagnosis back to PENDING. Admin only.
func (s *Service) Reopen(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Diagnosis, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(d.Status, StatusPending); err != nil {
		return nil, err
	}
	return s.repo.Transition(ctx, id, StatusCompleted, StatusPending, nil)
}

func validStatus(status string) error {
	switch status {
	case "", StatusPending, StatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: status must be PENDING or COMPLETED", ErrInvalid)
}

func (s *Service) ListByPatient(ctx context.Context, actor auth.Actor, patientID uuid.UUID, status string, limit, offset int) ([]*Diagnosis, int, error) {
	status = strings.ToUpper(status)
	if err := validStatus(status); err != nil {
		return nil, 0, err
	}
	if err := s.authorizeRead(ctx, actor, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListFilter{PatientID: &patientID, Status: status}, limit, offset)
}

// ListByDoctor returns the diagnoses a doctor authored.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*Diagnosis, int, error) {
	status = strings.ToUpper(status)
	if err := validStatus(status); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListFilter{DoctorID: &doctorID, Status: status}, limit, offset)
}

// PatientOf returns the patient a diagnosis belongs to.
func (s *Service) PatientOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return d.PatientID, nil
}
