package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrDuplicateUPI = errors.New("upi already taken")
)

// Patient maps to the patients table.
type Patient struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	UPI             string    `db:"upi" json:"upi"`
	NationalID      string    `db:"national_id" json:"national_id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	DateOfBirth     time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender          string    `db:"gender" json:"gender"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Address         *string   `db:"address" json:"address,omitempty"`
	BloodType       *string   `db:"blood_type" json:"blood_type,omitempty"`
	AllergiesLegacy *string   `db:"allergies_legacy" json:"-"`
	PhotoKey        *string   `db:"photo_key" json:"-"`
	PhotoURL        *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Age in whole years at the given instant.
func (p *Patient) Age(at time.Time) int {
	dob := p.DateOfBirth
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// CreateInput is the data needed to register a patient profile for an
// existing user. DateOfBirth is YYYY-MM-DD. Allergies is a free-text,
// comma separated list.
type CreateInput struct {
	UserID      uuid.UUID `json:"-"`
	NationalID  string    `json:"national_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	BloodType   string    `json:"blood_type"`
	Allergies   string    `json:"allergies"`
}

// ProfileUpdate holds the fields a patient may change on their own profile.
type ProfileUpdate struct {
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	BloodType *string `json:"blood_type"`
}

// EmergencyInfo maps to the emergency_info table. Each *Visible flag
// controls whether the section appears on the public SafePass view.
type EmergencyInfo struct {
	PatientID               uuid.UUID `db:"patient_id" json:"patient_id"`
	BloodTypeVisible        bool      `db:"blood_type_visible" json:"blood_type_visible"`
	AllergiesVisible        bool      `db:"allergies_visible" json:"allergies_visible"`
	ChronicConditions       string    `db:"chronic_conditions" json:"chronic_conditions"`
	ConditionsVisible       bool      `db:"conditions_visible" json:"conditions_visible"`
	CurrentMedications      string    `db:"current_medications" json:"current_medications"`
	MedicationsVisible      bool      `db:"medications_visible" json:"medications_visible"`
	EmergencyContactName    string    `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone   string    `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	EmergencyContactVisible bool      `db:"emergency_contact_visible" json:"emergency_contact_visible"`
	Notes                   string    `db:"notes" json:"notes"`
	NotesVisible            bool      `db:"notes_visible" json:"notes_visible"`
	OrganDonor              bool      `db:"organ_donor" json:"organ_donor"`
	OrganDonorVisible       bool      `db:"organ_donor_visible" json:"organ_donor_visible"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultEmergencyInfo is the row created on first read.
func DefaultEmergencyInfo(patientID uuid.UUID) *EmergencyInfo {
	return &EmergencyInfo{
		PatientID:               patientID,
		BloodTypeVisible:        true,
		AllergiesVisible:        true,
		EmergencyContactVisible: true,
	}
}

// EmergencyInfoUpdate is a partial update; nil fields are left unchanged.
type EmergencyInfoUpdate struct {
	BloodTypeVisible        *bool   `json:"blood_type_visible"`
	AllergiesVisible        *bool   `json:"allergies_visible"`
	ChronicConditions       *string `json:"chronic_conditions"`
	ConditionsVisible       *bool   `json:"conditions_visible"`
	CurrentMedications      *string `json:"current_medications"`
	MedicationsVisible      *bool   `json:"medications_visible"`
	EmergencyContactName    *string `json:"emergency_contact_name"`
	EmergencyContactPhone   *string `json:"emergency_contact_phone"`
	EmergencyContactVisible *bool   `json:"emergency_contact_visible"`
	Notes                   *string `json:"notes"`
	NotesVisible            *bool   `json:"notes_visible"`
	OrganDonor              *bool   `json:"organ_donor"`
	OrganDonorVisible       *bool   `json:"organ_donor_visible"`
}

const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityUnknown  = "unknown"
)

// Allergy maps to the allergies table.
type Allergy struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Substance string    `db:"substance" json:"substance"`
	Severity  string    `db:"severity" json:"severity"`
	Reaction  *string   `db:"reaction" json:"reaction,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmergencyProfile is everything the SafePass view may draw from.
type EmergencyProfile struct {
	Patient   *Patient
	Info      *EmergencyInfo
	Allergies []*Allergy
}
