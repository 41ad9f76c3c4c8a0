package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/db"
)

// AccessChecker is satisfied by *doctor.Service.
type AccessChecker interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
}

type Service struct {
	repo   Repository
	tx     db.Transactor
	access AccessChecker
	now    func() time.Time
}

func NewService(repo Repository, tx db.Transactor, access AccessChecker) *Service {
	return &Service{repo: repo, tx: tx, access: access, now: time.Now}
}

func validateSlot(errs *errsx.Map, at time.Time, duration int, now time.Time) {
	if at.IsZero() {
		errs.Set("scheduled_at", "is required")
	} else if !at.After(now) {
		errs.Set("scheduled_at", "must be in the future")
	}
	if duration < MinDuration || duration > MaxDuration {
		errs.Set("duration_minutes", fmt.Sprintf("must be between %d and %d", MinDuration, MaxDuration))
	}
}

// book checks the doctor's calendar and runs write while holding the
// doctor's booking lock.
func (s *Service) book(ctx context.Context, doctorID uuid.UUID, start time.Time, duration int, exclude *uuid.UUID, write func(ctx context.Context) error) error {
	end := start.Add(time.Duration(duration) * time.Minute)
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDoctor(ctx, doctorID); err != nil {
			return err
		}
		busy, err := s.repo.HasOverlap(ctx, doctorID, start, end, exclude)
		if err != nil {
			return err
		}
		if busy {
			return ErrConflict
		}
		return write(ctx)
	})
}

// Create books an appointment. Patients book with one of their assigned
// doctors; doctors book for one of their assigned patients.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Appointment, error) {
	switch {
	case actor.IsPatient():
		in.PatientID = actor.ProfileID
	case actor.IsDoctor():
		in.DoctorID = actor.ProfileID
	default:
		return nil, ErrForbidden
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = DefaultDuration
	}
	in.Reason = strings.TrimSpace(in.Reason)

	var errs errsx.Map
	if in.PatientID == uuid.Nil {
		errs.Set("patient_id", "is required")
	}
	if in.DoctorID == uuid.Nil {
		errs.Set("doctor_id", "is required")
	}
	validateSlot(&errs, in.ScheduledAt, in.DurationMinutes, s.now())
	if len(in.Reason) > 1000 {
		errs.Set("reason", "must be at most 1000 characters")
	}
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	if err := s.access.CheckAccess(ctx, in.DoctorID, in.PatientID); err != nil {
		if doctor.IsNoAssignment(err) {
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		}
		return nil, err
	}

	a := &Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		ScheduledAt:     in.ScheduledAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Reason:          in.Reason,
		Status:          StatusScheduled,
	}
	err := s.book(ctx, a.DoctorID, a.ScheduledAt, a.DurationMinutes, nil, func(ctx context.Context) error {
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func isParty(actor auth.Actor, a *Appointment) bool {
	return (actor.IsPatient() && actor.ProfileID == a.PatientID) ||
		(actor.IsDoctor() && actor.ProfileID == a.DoctorID)
}

// Get returns an appointment to either party or an admin.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !isParty(actor, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *Service) scheduled(ctx context.Context, id uuid.UUID, allowed func(*Appointment) bool) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(a) {
		return nil, ErrForbidden
	}
	if a.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: status is %s", ErrNotScheduled, a.Status)
	}
	return a, nil
}

func optionalNotes(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}

// Cancel lets either party call off a SCHEDULED appointment.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*Appointment, error) {
	if _, err := s.scheduled(ctx, id, func(a *Appointment) bool { return isParty(actor, a) }); err != nil {
		return nil, err
	}
	by := actor.UserID
	return s.repo.SetStatus(ctx, id, StatusCancelled, optionalNotes(reason), &by)
}

func (s *Service) byDoctor(actor auth.Actor) func(*Appointment) bool {
	return func(a *Appointment) bool { return actor.IsDoctor() && actor.ProfileID == a.DoctorID }
}

// Complete closes a SCHEDULED appointment. Doctor only.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID, notes string) (*Appointment, error) {
	if _, err := s.scheduled(ctx, id, s.byDoctor(actor)); err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, id, StatusCompleted, optionalNotes(notes), nil)
}

// NoShow records that the patient did not attend. Doctor only.
func (s *Service) NoShow(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	if _, err := s.scheduled(ctx, id, s.byDoctor(actor)); err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, id, StatusNoShow, nil, nil)
}

// Reschedule moves a SCHEDULED appointment. A zero duration keeps the
// current one.
func (s *Service) Reschedule(ctx context.Context, actor auth.Actor, id uuid.UUID, at time.Time, duration int) (*Appointment, error) {
	a, err := s.scheduled(ctx, id, func(a *Appointment) bool { return isParty(actor, a) })
	if err != nil {
		return nil, err
	}
	if duration == 0 {
		duration = a.DurationMinutes
	}
	var errs errsx.Map
	validateSlot(&errs, at, duration, s.now())
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	var out *Appointment
	err = s.book(ctx, a.DoctorID, at.UTC(), duration, &a.ID, func(ctx context.Context) error {
		var err error
		out, err = s.repo.Reschedule(ctx, id, at.UTC(), duration)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkStatus(status string) (string, error) {
	status = strings.ToUpper(status)
	if status != "" && !validStatuses[status] {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return status, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*Appointment, int, error) {
	status, err := checkStatus(status)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListFilter{PatientID: &patientID, Status: status}, limit, offset)
}

// ListByDoctor returns a doctor's calendar, optionally bounded to [from, to).
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time, status string, limit, offset int) ([]*Appointment, int, error) {
	status, err := checkStatus(status)
	if err != nil {
		return nil, 0, err
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, 0, fmt.Errorf("%w: to must be after from", ErrInvalid)
	}
	return s.repo.List(ctx, ListFilter{DoctorID: &doctorID, From: from, To: to, Status: status}, limit, offset)
}
