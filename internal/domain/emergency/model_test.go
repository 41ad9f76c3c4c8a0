package emergency

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/patient"
)

func sampleProfile() *patient.EmergencyProfile {
	blood := "O-"
	reaction := "anaphylaxis"
	id := uuid.New()
	return &patient.EmergencyProfile{
		Patient: &patient.Patient{
			ID: id, UPI: "HN-00000042", FirstName: "Ama", LastName: "Mensah",
			DateOfBirth: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), BloodType: &blood,
		},
		Info: &patient.EmergencyInfo{
			PatientID:               id,
			BloodTypeVisible:        true,
			AllergiesVisible:        true,
			ChronicConditions:       "asthma",
			ConditionsVisible:       false,
			CurrentMedications:      "salbutamol",
			MedicationsVisible:      true,
			EmergencyContactName:    "Kofi Mensah",
			EmergencyContactPhone:   "+233200000000",
			EmergencyContactVisible: true,
			Notes:                   "private",
		},
		Allergies: []*patient.Allergy{{PatientID: id, Substance: "penicillin", Severity: "severe", Reaction: &reaction}},
	}
}

func TestNewView_VisibleSections(t *testing.T) {
	at := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	v := NewView(sampleProfile(), at)

	if v.Age != 35 {
		t.Errorf("expected age 35 the day before the birthday, got %d", v.Age)
	}
	if v.BloodType == nil || *v.BloodType != "O-" {
		t.Errorf("expected blood type, got %v", v.BloodType)
	}
	if len(v.Allergies) != 1 || v.Allergies[0].Substance != "penicillin" {
		t.Errorf("unexpected allergies %+v", v.Allergies)
	}
	if v.CurrentMedications == nil || *v.CurrentMedications != "salbutamol" {
		t.Errorf("expected medications, got %v", v.CurrentMedications)
	}
	if v.ChronicConditions != nil || v.Notes != nil || v.OrganDonor != nil {
		t.Errorf("hidden sections leaked: %+v", v)
	}
	if v.EmergencyContact == nil || v.EmergencyContact.Phone != "+233200000000" {
		t.Errorf("unexpected contact %+v", v.EmergencyContact)
	}
}

func TestNewView_HiddenSectionsOmittedFromJSON(t *testing.T) {
	p := sampleProfile()
	p.Info.BloodTypeVisible = false
	p.Info.AllergiesVisible = false
	p.Info.MedicationsVisible = false
	p.Info.EmergencyContactVisible = false

	data, err := json.Marshal(NewView(p, time.Now()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, field := range []string{"blood_type", "allergies", "current_medications", "emergency_contact", "notes", "organ_donor"} {
		if strings.Contains(body, `"`+field+`"`) {
			t.Errorf("expected %s to be omitted, got %s", field, body)
		}
	}
	for _, field := range []string{"first_name", "upi", "age"} {
		if !strings.Contains(body, `"`+field+`"`) {
			t.Errorf("expected %s in %s", field, body)
		}
	}
}

func TestNewView_OrganDonorFalseIsShown(t *testing.T) {
	p := sampleProfile()
	p.Info.OrganDonorVisible = true

	v := NewView(p, time.Now())
	if v.OrganDonor == nil || *v.OrganDonor {
		t.Errorf("expected explicit false, got %v", v.OrganDonor)
	}
}

func TestValidCode(t *testing.T) {
	if !ValidCode(NewCode()) {
		t.Error("generated code should be valid")
	}
	for _, bad := range []string{"", "abc", strings.Repeat("g", 32), strings.Repeat("A", 32), strings.Repeat("a", 33)} {
		if ValidCode(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
