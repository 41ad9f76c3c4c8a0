package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/db"
)

// -- Mocks --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *mockUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			result = append(result, u)
		}
	}
	return result, len(result), nil
}

type stubProfiles struct {
	ids map[uuid.UUID]uuid.UUID
}

func (s *stubProfiles) ResolveProfile(_ context.Context, userID uuid.UUID, _ string) (uuid.UUID, error) {
	id, ok := s.ids[userID]
	if !ok {
		return uuid.Nil, errors.New("no profile")
	}
	return id, nil
}

type stubPatients struct {
	fail    error
	created []patient.CreateInput
}

func (s *stubPatients) Create(_ context.Context, in patient.CreateInput) (*patient.Patient, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.created = append(s.created, in)
	return &patient.Patient{ID: uuid.New(), UserID: in.UserID, UPI: "HN0000000001"}, nil
}

type stubRevoker struct {
	revoked map[string]time.Duration
}

func (s *stubRevoker) RevokeUser(userID string, ttl time.Duration) {
	s.revoked[userID] = ttl
}

type fixture struct {
	svc      *Service
	users    *mockUserRepo
	profiles *stubProfiles
	patients *stubPatients
	revoker  *stubRevoker
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newFixture() *fixture {
	f := &fixture{
		users:    newMockUserRepo(),
		profiles: &stubProfiles{ids: map[uuid.UUID]uuid.UUID{}},
		patients: &stubPatients{},
		revoker:  &stubRevoker{revoked: map[string]time.Duration{}},
	}
	issuer := auth.NewTokenIssuer(testKey, "healthnet", time.Hour)
	f.svc = NewService(f.users, db.NopTransactor{}, issuer, time.Hour, f.profiles, f.patients, f.revoker)
	return f
}

func (f *fixture) createUser(t *testing.T, email, role string) *User {
	t.Helper()
	u, err := f.svc.CreateUser(context.Background(), email, "correct-horse", role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.profiles.ids[u.ID] = uuid.New()
	return u
}

// -- Tests --

func TestService_CreateUser_NormalisesEmail(t *testing.T) {
	f := newFixture()
	u := f.createUser(t, "  Dr.Who@Example.ORG ", auth.RoleDoctor)
	if u.Email != "dr.who@example.org" {
		t.Errorf("expected lower-cased email, got %q", u.Email)
	}
	if u.PasswordHash == "correct-horse" || !auth.CheckPassword(u.PasswordHash, "correct-horse") {
		t.Error("expected a bcrypt hash of the password")
	}
	if !u.Active {
		t.Error("expected new users to be active")
	}
}

func TestService_CreateUser_Validation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateUser(context.Background(), "not an email", "short", "nurse")
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, field := range []string{"email", "password", "role"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected %q in %q", field, err.Error())
		}
	}
}

func TestService_CreateUser_DuplicateEmail(t *testing.T) {
	f := newFixture()
	f.createUser(t, "a@example.org", auth.RolePatient)
	if _, err := f.svc.CreateUser(context.Background(), "A@example.org", "correct-horse", auth.RolePatient); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	f := newFixture()
	u := f.createUser(t, "doc@example.org", auth.RoleDoctor)

	s, err := f.svc.Login(context.Background(), "DOC@example.org", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TokenType != "Bearer" || s.AccessToken == "" {
		t.Errorf("unexpected token %+v", s.IssuedToken)
	}
	claims, err := auth.ParseToken(s.AccessToken, testKey, "healthnet")
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != auth.RoleDoctor || claims.ProfileID != f.profiles.ids[u.ID].String() {
		t.Errorf("unexpected claims %+v", claims)
	}
	if f.users.users[u.ID].LastLoginAt == nil {
		t.Error("expected last_login_at to be stamped")
	}
}

func TestService_Login_Failures(t *testing.T) {
	f := newFixture()
	u := f.createUser(t, "pat@example.org", auth.RolePatient)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "pat@example.org", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "nobody@example.org", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}

	f.users.users[u.ID].Active = false
	if _, err := f.svc.Login(ctx, "pat@example.org", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("inactive user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_RegisterPatient(t *testing.T) {
	f := newFixture()
	in := RegisterInput{Email: "new@example.org", Password: "long-enough"}
	in.FirstName = "Ama"

	s, err := f.svc.RegisterPatient(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.User.Role != auth.RolePatient || s.ProfileID == uuid.Nil {
		t.Errorf("unexpected session %+v", s)
	}
	if len(f.patients.created) != 1 || f.patients.created[0].UserID != s.User.ID {
		t.Errorf("expected patient profile bound to the new user, got %+v", f.patients.created)
	}
}

func TestService_RegisterPatient_PatientFailurePropagates(t *testing.T) {
	f := newFixture()
	f.patients.fail = patient.ErrInvalid

	_, err := f.svc.RegisterPatient(context.Background(), RegisterInput{Email: "x@example.org", Password: "long-enough"})
	if !errors.Is(err, patient.ErrInvalid) {
		t.Errorf("expected patient.ErrInvalid, got %v", err)
	}
}

func TestService_ChangePassword(t *testing.T) {
	f := newFixture()
	u := f.createUser(t, "c@example.org", auth.RolePatient)
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, u.ID, "wrong", "another-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, u.ID, "correct-horse", "short"); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, u.ID, "correct-horse", "another-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Login(ctx, "c@example.org", "another-password"); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
}

func TestService_SetActive_RevokesTokens(t *testing.T) {
	f := newFixture()
	admin := f.createUser(t, "admin@example.org", auth.RoleAdmin)
	u := f.createUser(t, "d@example.org", auth.RoleDoctor)

	got, err := f.svc.SetActive(context.Background(), admin.ID, u.ID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Active {
		t.Error("expected user to be inactive")
	}
	if ttl, ok := f.revoker.revoked[u.ID.String()]; !ok || ttl != time.Hour {
		t.Errorf("expected tokens revoked for the token TTL, got %v", f.revoker.revoked)
	}

	if _, err := f.svc.SetActive(context.Background(), admin.ID, u.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.revoker.revoked) != 1 {
		t.Error("re-activation must not revoke again")
	}
}

func TestService_SetActive_CannotDisableSelf(t *testing.T) {
	f := newFixture()
	admin := f.createUser(t, "admin@example.org", auth.RoleAdmin)
	if _, err := f.svc.SetActive(context.Background(), admin.ID, admin.ID, false); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestService_List_UnknownRole(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.List(context.Background(), "nurse", 20, 0); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
