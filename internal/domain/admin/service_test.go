package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/account"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
)

// -- Mocks --

type mockAdminRepo struct {
	store map[uuid.UUID]*Admin
}

func (m *mockAdminRepo) Create(_ context.Context, a *Admin) error {
	for _, existing := range m.store {
		if existing.UserID == a.UserID {
			return ErrConflict
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.store[a.ID] = a
	return nil
}

func (m *mockAdminRepo) GetByID(_ context.Context, id uuid.UUID) (*Admin, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockAdminRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Admin, error) {
	for _, a := range m.store {
		if a.UserID == userID {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

type mockStatsRepo struct {
	now, since time.Time
}

func (m *mockStatsRepo) Stats(_ context.Context, now, since time.Time) (*Stats, error) {
	m.now, m.since = now, since
	return &Stats{Patients: 3, Doctors: 2, GeneratedAt: now}, nil
}

type stubUsers struct {
	roles []string
	fail  error
}

func (s *stubUsers) CreateUser(_ context.Context, email, _ string, role string) (*account.User, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.roles = append(s.roles, role)
	return &account.User{ID: uuid.New(), Email: email, Role: role, Active: true}, nil
}

type stubDoctors struct {
	fail    error
	created []*doctor.Doctor
}

func (s *stubDoctors) Create(_ context.Context, d *doctor.Doctor) error {
	if s.fail != nil {
		return s.fail
	}
	d.ID = uuid.New()
	s.created = append(s.created, d)
	return nil
}

type stubPatients struct {
	created []patient.CreateInput
}

func (s *stubPatients) Create(_ context.Context, in patient.CreateInput) (*patient.Patient, error) {
	s.created = append(s.created, in)
	return &patient.Patient{ID: uuid.New(), UserID: in.UserID}, nil
}

// recordingTx runs fn inline and remembers whether it returned an error.
type recordingTx struct {
	calls      int
	rolledBack bool
}

func (r *recordingTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	err := fn(ctx)
	r.rolledBack = err != nil
	return err
}

type testDeps struct {
	admins   *mockAdminRepo
	stats    *mockStatsRepo
	tx       *recordingTx
	users    *stubUsers
	doctors  *stubDoctors
	patients *stubPatients
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		admins:   &mockAdminRepo{store: map[uuid.UUID]*Admin{}},
		stats:    &mockStatsRepo{},
		tx:       &recordingTx{},
		users:    &stubUsers{},
		doctors:  &stubDoctors{},
		patients: &stubPatients{},
	}
	return NewService(d.admins, d.stats, d.tx, d.users, d.doctors, d.patients), d
}

// -- Tests --

func TestService_CreateAdmin(t *testing.T) {
	svc, deps := newTestService()
	out, err := svc.CreateAdmin(context.Background(), CreateAdminInput{
		Email: "root@example.org", Password: "long-enough", FirstName: " Kofi ", LastName: "Mensah",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Admin.UserID != out.User.ID || out.Admin.FirstName != "Kofi" {
		t.Errorf("unexpected admin %+v", out.Admin)
	}
	if deps.users.roles[0] != auth.RoleAdmin {
		t.Errorf("expected admin role, got %v", deps.users.roles)
	}

	got, err := svc.GetByUserID(context.Background(), out.User.ID)
	if err != nil || got.ID != out.Admin.ID {
		t.Errorf("expected lookup by user id, got %v, %v", got, err)
	}
}

func TestService_CreateAdmin_Validation(t *testing.T) {
	svc, deps := newTestService()
	_, err := svc.CreateAdmin(context.Background(), CreateAdminInput{Email: "root@example.org", Password: "long-enough"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "first_name") || !strings.Contains(err.Error(), "last_name") {
		t.Errorf("expected both name fields reported, got %v", err)
	}
	if deps.tx.calls != 0 {
		t.Error("validation failure must not open a transaction")
	}
}

func TestService_CreateDoctor(t *testing.T) {
	svc, deps := newTestService()
	out, err := svc.CreateDoctor(context.Background(), CreateDoctorInput{
		Email: "doc@example.org", Password: "long-enough", LicenseNumber: "MDC-1",
		FirstName: "Efua", LastName: "Asante", Specialization: " Cardiology ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Doctor.UserID != out.User.ID || out.Doctor.Specialization != "Cardiology" {
		t.Errorf("unexpected doctor %+v", out.Doctor)
	}
	if deps.users.roles[0] != auth.RoleDoctor || deps.tx.calls != 1 {
		t.Errorf("expected one doctor user created in a transaction")
	}
}

func TestService_CreateDoctor_ProfileFailureRollsBack(t *testing.T) {
	svc, deps := newTestService()
	deps.doctors.fail = doctor.ErrConflict

	_, err := svc.CreateDoctor(context.Background(), CreateDoctorInput{Email: "doc@example.org", Password: "long-enough"})
	if !errors.Is(err, doctor.ErrConflict) {
		t.Fatalf("expected doctor.ErrConflict, got %v", err)
	}
	if !deps.tx.rolledBack {
		t.Error("expected the transaction to roll back")
	}
}

func TestService_CreatePatient(t *testing.T) {
	svc, deps := newTestService()
	in := CreatePatientInput{Email: "pat@example.org", Password: "long-enough"}
	in.FirstName = "Yaw"

	out, err := svc.CreatePatient(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps.patients.created) != 1 || deps.patients.created[0].UserID != out.User.ID {
		t.Errorf("expected patient bound to new user, got %+v", deps.patients.created)
	}
	if out.User.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", out.User.Role)
	}
}

func TestService_CreatePatient_UserFailure(t *testing.T) {
	svc, deps := newTestService()
	deps.users.fail = account.ErrConflict

	if _, err := svc.CreatePatient(context.Background(), CreatePatientInput{}); !errors.Is(err, account.ErrConflict) {
		t.Errorf("expected account.ErrConflict, got %v", err)
	}
	if len(deps.patients.created) != 0 {
		t.Error("no patient profile should be created")
	}
}

func TestService_Stats_Window(t *testing.T) {
	svc, deps := newTestService()
	fixed := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Patients != 3 || !stats.GeneratedAt.Equal(fixed) {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !deps.stats.since.Equal(fixed.Add(-24 * time.Hour)) {
		t.Errorf("expected a 24h scan window, got since=%v", deps.stats.since)
	}
}
