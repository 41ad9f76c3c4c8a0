package emergency

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/patient"
)

var (
	ErrNotFound = errors.New("safepass not found")
	ErrConflict = errors.New("safepass is being reissued, try again")
)

// CodeLength is the number of hex characters in a SafePass code.
const CodeLength = 32

// QRCode maps to the qr_codes table. At most one row per patient is active.
type QRCode struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Code      string     `db:"code" json:"code"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Scan maps to the scan_history table.
type Scan struct {
	ID        uuid.UUID `db:"id" json:"id"`
	QRCodeID  uuid.UUID `db:"qr_code_id" json:"qr_code_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	ScannedAt time.Time `db:"scanned_at" json:"scanned_at"`
	IPAddress *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent *string   `db:"user_agent" json:"user_agent,omitempty"`
}

// Scanner identifies whoever opened a SafePass link.
type Scanner struct {
	IP        string
	UserAgent string
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type AllergyView struct {
	Substance string  `json:"substance"`
	Severity  string  `json:"severity"`
	Reaction  *string `json:"reaction,omitempty"`
}

// View is the public SafePass page. Identity fields are always present;
// every other section is omitted unless the patient marked it visible.
type View struct {
	FirstName          string        `json:"first_name"`
	LastName           string        `json:"last_name"`
	UPI                string        `json:"upi"`
	Age                int           `json:"age"`
	PhotoURL           *string       `json:"photo_url,omitempty"`
	BloodType          *string       `json:"blood_type,omitempty"`
	Allergies          []AllergyView `json:"allergies,omitempty"`
	ChronicConditions  *string       `json:"chronic_conditions,omitempty"`
	CurrentMedications *string       `json:"current_medications,omitempty"`
	EmergencyContact   *Contact      `json:"emergency_contact,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
	OrganDonor         *bool         `json:"organ_donor,omitempty"`
}

// NewView projects an emergency profile onto the fields its owner chose to
// share.
func NewView(p *patient.EmergencyProfile, at time.Time) *View {
	v := &View{
		FirstName: p.Patient.FirstName,
		LastName:  p.Patient.LastName,
		UPI:       p.Patient.UPI,
		Age:       p.Patient.Age(at),
		PhotoURL:  p.Patient.PhotoURL,
	}

	info := p.Info
	if info == nil {
		info = patient.DefaultEmergencyInfo(p.Patient.ID)
	}
	if info.BloodTypeVisible {
		v.BloodType = p.Patient.BloodType
	}
	if info.AllergiesVisible {
		for _, a := range p.Allergies {
			v.Allergies = append(v.Allergies, AllergyView{Substance: a.Substance, Severity: a.Severity, Reaction: a.Reaction})
		}
	}
	if info.ConditionsVisible {
		v.ChronicConditions = nonEmpty(info.ChronicConditions)
	}
	if info.MedicationsVisible {
		v.CurrentMedications = nonEmpty(info.CurrentMedications)
	}
	if info.EmergencyContactVisible && (info.EmergencyContactName != "" || info.EmergencyContactPhone != "") {
		v.EmergencyContact = &Contact{Name: info.EmergencyContactName, Phone: info.EmergencyContactPhone}
	}
	if info.NotesVisible {
		v.Notes = nonEmpty(info.Notes)
	}
	if info.OrganDonorVisible {
		donor := info.OrganDonor
		v.OrganDonor = &donor
	}
	return v
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
