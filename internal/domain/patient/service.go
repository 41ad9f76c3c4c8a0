package patient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/healthnet/healthnet/internal/platform/blobstore"
	"github.com/healthnet/healthnet/internal/platform/db"
)

const dateLayout = "2006-01-02"

var (
	validGenders = map[string]bool{"male": true, "female": true, "other": true}
	validBlood   = map[string]bool{
		"A+": true, "A-": true, "B+": true, "B-": true,
		"AB+": true, "AB-": true, "O+": true, "O-": true,
	}
	validSeverities = map[string]bool{
		SeverityMild: true, SeverityModerate: true, SeveritySevere: true, SeverityUnknown: true,
	}
)

// PhotoDir is the object key prefix for profile photos. Photos are the only
// uploads served without authentication.
const PhotoDir = "photos"

type Service struct {
	patients  PatientRepository
	info      EmergencyInfoRepository
	allergies AllergyRepository
	tx        db.Transactor
	blobs     blobstore.Store
	photos    blobstore.Policy
	newUPI    func() (string, error)
	now       func() time.Time
}

func NewService(patients PatientRepository, info EmergencyInfoRepository, allergies AllergyRepository,
	tx db.Transactor, blobs blobstore.Store, maxPhotoSize int64) *Service {
	return &Service{
		patients:  patients,
		info:      info,
		allergies: allergies,
		tx:        tx,
		blobs:     blobs,
		photos:    blobstore.Policy{MaxSize: maxPhotoSize, ContentTypes: blobstore.ImageTypes},
		newUPI:    GenerateUPI,
		now:       time.Now,
	}
}

// PhotoPolicy bounds profile photo uploads.
func (s *Service) PhotoPolicy() blobstore.Policy { return s.photos }

// -- Patient --

// Create validates in and inserts a patient with a fresh UPI.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Patient, error) {
	p, err := s.fromInput(in)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUPIAttempts; attempt++ {
		upi, err := s.newUPI()
		if err != nil {
			return nil, err
		}
		// A failed INSERT aborts an enclosing transaction, so collisions are
		// checked up front and the unique index only catches races.
		if _, err := s.patients.GetByUPI(ctx, upi); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		p.UPI = upi
		err = s.patients.Create(ctx, p)
		if errors.Is(err, ErrDuplicateUPI) && !db.InTx(ctx) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a unique upi", ErrConflict)
}

func (s *Service) fromInput(in CreateInput) (*Patient, error) {
	var errs errsx.Map
	p := &Patient{
		UserID:     in.UserID,
		NationalID: strings.TrimSpace(in.NationalID),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Gender:     strings.ToLower(strings.TrimSpace(in.Gender)),
		Phone:      optional(in.Phone),
		Address:    optional(in.Address),
		BloodType:  optional(strings.ToUpper(in.BloodType)),
	}
	if legacy := strings.TrimSpace(in.Allergies); legacy != "" {
		p.AllergiesLegacy = &legacy
	}

	if p.UserID == uuid.Nil {
		errs.Set("user_id", "is required")
	}
	if p.NationalID == "" {
		errs.Set("national_id", "is required")
	}
	if p.FirstName == "" {
		errs.Set("first_name", "is required")
	}
	if p.LastName == "" {
		errs.Set("last_name", "is required")
	}
	if !validGenders[p.Gender] {
		errs.Set("gender", "must be male, female or other")
	}
	if p.BloodType != nil && !validBlood[*p.BloodType] {
		errs.Set("blood_type", "is not a valid ABO/Rh type")
	}
	dob, err := time.Parse(dateLayout, strings.TrimSpace(in.DateOfBirth))
	switch {
	case err != nil:
		errs.Set("date_of_birth", "must be YYYY-MM-DD")
	case dob.After(s.now()):
		errs.Set("date_of_birth", "cannot be in the future")
	default:
		p.DateOfBirth = dob
	}

	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}
	return p, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

func (s *Service) GetByUPI(ctx context.Context, upi string) (*Patient, error) {
	upi = strings.ToUpper(strings.TrimSpace(upi))
	if !ValidUPI(upi) {
		return nil, ErrNotFound
	}
	return s.patients.GetByUPI(ctx, upi)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, search, limit, offset)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Phone != nil {
		p.Phone = optional(*u.Phone)
	}
	if u.Address != nil {
		p.Address = optional(*u.Address)
	}
	if u.BloodType != nil {
		p.BloodType = optional(strings.ToUpper(*u.BloodType))
		if p.BloodType != nil && !validBlood[*p.BloodType] {
			return nil, fmt.Errorf("%w: blood_type is not a valid ABO/Rh type", ErrInvalid)
		}
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPhoto stores a new profile photo and removes the previous object.
func (s *Service) SetPhoto(ctx context.Context, id uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*Patient, error) {
	ct, err := s.photos.Validate(fileName, contentType, size)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.blobs.Put(ctx, blobstore.ObjectKey(PhotoDir+"/"+id.String(), fileName), ct, r)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	if err := s.patients.SetPhoto(ctx, id, &obj.Key, &obj.URL); err != nil {
		_ = s.blobs.Delete(ctx, obj.Key)
		return nil, err
	}

	old := p.PhotoKey
	p.PhotoKey, p.PhotoURL = &obj.Key, &obj.URL
	if old != nil && *old != obj.Key {
		_ = s.blobs.Delete(ctx, *old)
	}
	return p, nil
}

// ListPhotoKeys and RewritePhotoURL back the storage migration command.
func (s *Service) ListPhotoKeys(ctx context.Context) ([]string, error) {
	return s.patients.ListPhotoKeys(ctx)
}

func (s *Service) RewritePhotoURL(ctx context.Context, key, url string) (int64, error) {
	return s.patients.RewritePhotoURL(ctx, key, url)
}

// -- Emergency Info --

// GetEmergencyInfo returns the patient's emergency info, creating the
// default row on first read.
func (s *Service) GetEmergencyInfo(ctx context.Context, patientID uuid.UUID) (*EmergencyInfo, error) {
	info, err := s.info.Get(ctx, patientID)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := s.info.CreateDefault(ctx, DefaultEmergencyInfo(patientID)); err != nil {
		return nil, err
	}
	return s.info.Get(ctx, patientID)
}

func (s *Service) UpdateEmergencyInfo(ctx context.Context, patientID uuid.UUID, u EmergencyInfoUpdate) (*EmergencyInfo, error) {
	info, err := s.GetEmergencyInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}
	setBool(&info.BloodTypeVisible, u.BloodTypeVisible)
	setBool(&info.AllergiesVisible, u.AllergiesVisible)
	setString(&info.ChronicConditions, u.ChronicConditions)
	setBool(&info.ConditionsVisible, u.ConditionsVisible)
	setString(&info.CurrentMedications, u.CurrentMedications)
	setBool(&info.MedicationsVisible, u.MedicationsVisible)
	setString(&info.EmergencyContactName, u.EmergencyContactName)
	setString(&info.EmergencyContactPhone, u.EmergencyContactPhone)
	setBool(&info.EmergencyContactVisible, u.EmergencyContactVisible)
	setString(&info.Notes, u.Notes)
	setBool(&info.NotesVisible, u.NotesVisible)
	setBool(&info.OrganDonor, u.OrganDonor)
	setBool(&info.OrganDonorVisible, u.OrganDonorVisible)

	if err := s.info.Update(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// -- Allergies --

// ListAllergies returns the patient's allergies. A legacy comma separated
// allergy string still on the patient row is split into allergy rows and
// cleared in the same transaction.
func (s *Service) ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	var items []*Allergy
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		existing, err := s.allergies.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if p.AllergiesLegacy == nil {
			items = existing
			return nil
		}

		if split := splitLegacy(*p.AllergiesLegacy, existing); len(split) > 0 {
			for _, a := range split {
				a.PatientID = patientID
			}
			if err := s.allergies.CreateMany(ctx, split); err != nil {
				return fmt.Errorf("migrate legacy allergies: %w", err)
			}
		}
		if err := s.patients.ClearLegacyAllergies(ctx, patientID); err != nil {
			return err
		}
		items, err = s.allergies.ListByPatient(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Allergy{}
	}
	return items, nil
}

// splitLegacy turns "Penicillin, peanuts,,penicillin" into one allergy per
// distinct substance, skipping substances already recorded.
func splitLegacy(legacy string, existing []*Allergy) []*Allergy {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[strings.ToLower(a.Substance)] = true
	}
	var out []*Allergy
	for _, part := range strings.Split(legacy, ",") {
		substance := strings.TrimSpace(part)
		key := strings.ToLower(substance)
		if substance == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, &Allergy{Substance: substance, Severity: SeverityUnknown})
	}
	return out
}

func (s *Service) AddAllergy(ctx context.Context, patientID uuid.UUID, a *Allergy) error {
	a.PatientID = patientID
	a.Substance = strings.TrimSpace(a.Substance)
	a.Severity = strings.ToLower(strings.TrimSpace(a.Severity))
	if a.Severity == "" {
		a.Severity = SeverityUnknown
	}
	if a.Reaction != nil {
		a.Reaction = optional(*a.Reaction)
	}

	var errs errsx.Map
	if a.Substance == "" {
		errs.Set("substance", "is required")
	}
	if !validSeverities[a.Severity] {
		errs.Set("severity", "must be mild, moderate, severe or unknown")
	}
	if !errs.IsEmpty() {
		return fmt.Errorf("%w: %w", ErrInvalid, errs.AsError())
	}

	// split any legacy string first so it cannot later duplicate this entry
	if _, err := s.ListAllergies(ctx, patientID); err != nil {
		return err
	}
	return s.allergies.Create(ctx, a)
}

// RemoveAllergy deletes one of the patient's own allergies.
func (s *Service) RemoveAllergy(ctx context.Context, patientID, allergyID uuid.UUID) error {
	a, err := s.allergies.GetByID(ctx, allergyID)
	if err != nil {
		return err
	}
	if a.PatientID != patientID {
		return ErrForbidden
	}
	return s.allergies.Delete(ctx, allergyID)
}

// EmergencyProfile gathers the data behind the SafePass view.
func (s *Service) EmergencyProfile(ctx context.Context, patientID uuid.UUID) (*EmergencyProfile, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	info, err := s.GetEmergencyInfo(ctx, patientID)
	if err != nil {
		return nil, err
	}
	allergies, err := s.ListAllergies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &EmergencyProfile{Patient: p, Info: info, Allergies: allergies}, nil
}
