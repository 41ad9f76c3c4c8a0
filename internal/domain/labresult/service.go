package labresult

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/domain/diagnosis"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
)

// AccessChecker is satisfied by *doctor.Service.
type AccessChecker interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
}

// DiagnosisLookup resolves the patient a diagnosis belongs to. Satisfied by
// *diagnosis.Service.
type DiagnosisLookup interface {
	PatientOf(ctx context.Context, diagnosisID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo      Repository
	access    AccessChecker
	diagnoses DiagnosisLookup
	blobs     blobstore.Store
	policy    blobstore.Policy
}

func NewService(repo Repository, access AccessChecker, diagnoses DiagnosisLookup, blobs blobstore.Store, maxFileSize int64) *Service {
	return &Service{
		repo:      repo,
		access:    access,
		diagnoses: diagnoses,
		blobs:     blobs,
		policy:    blobstore.Policy{MaxSize: maxFileSize, ContentTypes: blobstore.DocumentTypes},
	}
}

// FilePolicy bounds lab result attachments.
func (s *Service) FilePolicy() blobstore.Policy { return s.policy }

func (s *Service) checkDoctor(ctx context.Context, doctorID, patientID uuid.UUID) error {
	err := s.access.CheckAccess(ctx, doctorID, patientID)
	if doctor.IsNoAssignment(err) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}

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

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func normalize(l *LabResult) {
	l.TestName = strings.TrimSpace(l.TestName)
	l.ResultValue = strings.TrimSpace(l.ResultValue)
	l.Unit = trimPtr(l.Unit)
	l.ReferenceRange = trimPtr(l.ReferenceRange)
	l.Notes = trimPtr(l.Notes)
	l.Flag = strings.ToLower(strings.TrimSpace(l.Flag))
	if l.Flag == "" {
		l.Flag = FlagNormal
	}
}

func validate(l *LabResult) error {
	var errs errsx.Map
	if l.TestName == "" {
		errs.Set("test_name", "is required")
	} else if len(l.TestName) > 200 {
		errs.Set("test_name", "must be at most 200 characters")
	}
	if !validFlags[l.Flag] {
		errs.Set("flag", "must be normal, abnormal or critical")
	}
	if l.Unit != nil && len(*l.Unit) > 32 {
		errs.Set("unit", "must be at most 32 characters")
	}
	if l.ReferenceRange != nil && len(*l.ReferenceRange) > 64 {
		errs.Set("reference_range", "must be at most 64 characters")
	}
	if !errs.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}
	return nil
}

// Create records a result for a patient the calling doctor is assigned to,
// storing file under lab-results/<patient>/ when one is given.
func (s *Service) Create(ctx context.Context, actor auth.Actor, l *LabResult, file *Attachment) error {
	if !actor.IsDoctor() {
		return ErrForbidden
	}
	if err := s.checkDoctor(ctx, actor.ProfileID, l.PatientID); err != nil {
		return err
	}
	l.DoctorID = actor.ProfileID
	l.FileKey, l.FileURL, l.FileName, l.ContentType = nil, nil, nil, nil
	normalize(l)
	if err := validate(l); err != nil {
		return err
	}
	if l.DiagnosisID != nil {
		owner, err := s.diagnoses.PatientOf(ctx, *l.DiagnosisID)
		if err != nil && !errors.Is(err, diagnosis.ErrNotFound) {
			return err
		}
		if err != nil || owner != l.PatientID {
			return fmt.Errorf("%w: diagnosis_id does not belong to this patient", ErrInvalid)
		}
	}

	if file != nil {
		ct, err := s.policy.Validate(file.FileName, file.ContentType, file.Size)
		if err != nil {
			return err
		}
		key := blobstore.ObjectKey("lab-results/"+l.PatientID.String(), file.FileName)
		obj, err := s.blobs.Put(ctx, key, ct, file.Body)
		if err != nil {
			return fmt.Errorf("store lab result file: %w", err)
		}
		name := file.FileName
		l.FileKey, l.FileURL, l.FileName, l.ContentType = &obj.Key, &obj.URL, &name, &ct
	}

	if err := s.repo.Create(ctx, l); err != nil {
		if l.HasFile() {
			_ = s.blobs.Delete(ctx, *l.FileKey)
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*LabResult, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, l.PatientID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListByPatient(ctx context.Context, actor auth.Actor, patientID uuid.UUID, flag string, limit, offset int) ([]*LabResult, int, error) {
	flag = strings.ToLower(flag)
	if flag != "" && !validFlags[flag] {
		return nil, 0, fmt.Errorf("%w: flag must be normal, abnormal or critical", ErrInvalid)
	}
	if err := s.authorizeRead(ctx, actor, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, flag, limit, offset)
}

// Update edits a result. Only the authoring doctor may edit.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, u Update) (*LabResult, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() || actor.ProfileID != cur.DoctorID {
		return nil, fmt.Errorf("%w: only the authoring doctor may edit", ErrForbidden)
	}

	l := *cur
	if u.TestName != nil {
		l.TestName = *u.TestName
	}
	if u.ResultValue != nil {
		l.ResultValue = *u.ResultValue
	}
	if u.Unit != nil {
		l.Unit = u.Unit
	}
	if u.ReferenceRange != nil {
		l.ReferenceRange = u.ReferenceRange
	}
	if u.Flag != nil {
		l.Flag = *u.Flag
	}
	if u.Notes != nil {
		l.Notes = u.Notes
	}
	if u.CollectedAt != nil {
		l.CollectedAt = u.CollectedAt
	}
	normalize(&l)
	if err := validate(&l); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Delete removes a result and its attachment. Allowed for the author and admins.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ProfileID == l.DoctorID) {
		return fmt.Errorf("%w: only the authoring doctor or an admin may delete", ErrForbidden)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if l.HasFile() {
		if err := s.blobs.Delete(ctx, *l.FileKey); err != nil {
			return fmt.Errorf("delete lab result file: %w", err)
		}
	}
	return nil
}

// OpenFile returns the attachment of a result the actor may read. The
// caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, actor auth.Actor, id uuid.UUID) (io.ReadCloser, *blobstore.Object, string, error) {
	l, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, "", err
	}
	if !l.HasFile() {
		return nil, nil, "", ErrNoFile
	}
	rc, obj, err := s.blobs.Get(ctx, *l.FileKey)
	if err != nil {
		return nil, nil, "", err
	}
	name := ""
	if l.FileName != nil {
		name = *l.FileName
	}
	return rc, obj, name, nil
}

// ListFileKeys and RewriteFileURL back the storage migration command.
func (s *Service) ListFileKeys(ctx context.Context) ([]string, error) {
	return s.repo.ListFileKeys(ctx)
}

func (s *Service) RewriteFileURL(ctx context.Context, key, url string) (int64, error) {
	return s.repo.RewriteFileURL(ctx, key, url)
}
