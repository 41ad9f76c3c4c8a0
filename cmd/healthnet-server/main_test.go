package main

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthnet/healthnet/internal/config"
	"github.com/healthnet/healthnet/internal/domain/admin"
	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/domain/patient"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
)

// ---------------------------------------------------------------------------
// resolveSigningKey
// ---------------------------------------------------------------------------

func TestResolveSigningKey_FromHex(t *testing.T) {
	want := strings.Repeat("ab", 32)
	key, generated, err := resolveSigningKey(want)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected generated=false for a configured secret")
	}
	if hex.EncodeToString(key) != want {
		t.Errorf("key = %x, want %s", key, want)
	}
}

func TestResolveSigningKey_InvalidHex(t *testing.T) {
	if _, _, err := resolveSigningKey("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestResolveSigningKey_Random(t *testing.T) {
	k1, generated, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated || len(k1) != 32 {
		t.Errorf("expected a generated 32-byte key, got %d bytes (generated=%v)", len(k1), generated)
	}
	k2, _, _ := resolveSigningKey("")
	if hex.EncodeToString(k1) == hex.EncodeToString(k2) {
		t.Error("two generated keys should differ")
	}
}

// ---------------------------------------------------------------------------
// profileResolver
// ---------------------------------------------------------------------------

type stubAdmins map[uuid.UUID]*admin.Admin

func (s stubAdmins) GetByUserID(_ context.Context, id uuid.UUID) (*admin.Admin, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, admin.ErrNotFound
}

type stubDoctors map[uuid.UUID]*doctor.Doctor

func (s stubDoctors) GetByUserID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	if d, ok := s[id]; ok {
		return d, nil
	}
	return nil, doctor.ErrNotFound
}

type failingPatients struct{ err error }

func (f failingPatients) GetByUserID(context.Context, uuid.UUID) (*patient.Patient, error) {
	return nil, f.err
}

func TestProfileResolver(t *testing.T) {
	adminUser, doctorUser := uuid.New(), uuid.New()
	adminProfile := &admin.Admin{ID: uuid.New(), UserID: adminUser}
	doctorProfile := &doctor.Doctor{ID: uuid.New(), UserID: doctorUser}
	r := &profileResolver{
		admins:   stubAdmins{adminUser: adminProfile},
		doctors:  stubDoctors{doctorUser: doctorProfile},
		patients: failingPatients{err: patient.ErrNotFound},
	}
	ctx := context.Background()

	if id, err := r.ResolveProfile(ctx, adminUser, auth.RoleAdmin); err != nil || id != adminProfile.ID {
		t.Errorf("admin: got %s (%v)", id, err)
	}
	if id, err := r.ResolveProfile(ctx, doctorUser, auth.RoleDoctor); err != nil || id != doctorProfile.ID {
		t.Errorf("doctor: got %s (%v)", id, err)
	}
	if id, err := r.ResolveProfile(ctx, uuid.New(), auth.RoleAdmin); err != nil || id != uuid.Nil {
		t.Errorf("admin without profile: expected nil id, got %s (%v)", id, err)
	}
	if id, err := r.ResolveProfile(ctx, uuid.New(), auth.RolePatient); err != nil || id != uuid.Nil {
		t.Errorf("patient without profile: expected nil id, got %s (%v)", id, err)
	}
	if _, err := r.ResolveProfile(ctx, uuid.New(), "nurse"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestProfileResolver_PropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	r := &profileResolver{patients: failingPatients{err: boom}}
	if _, err := r.ResolveProfile(context.Background(), uuid.New(), auth.RolePatient); !errors.Is(err, boom) {
		t.Errorf("expected wrapped database error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// storage migrate
// ---------------------------------------------------------------------------

type recordingIndex struct {
	keys      []string
	rewritten map[string]string
}

func (r *recordingIndex) index(name string) fileIndex {
	return fileIndex{
		name: name,
		keys: func(context.Context) ([]string, error) { return r.keys, nil },
		rewrite: func(_ context.Context, key, url string) (int64, error) {
			r.rewritten[key] = url
			return 1, nil
		},
	}
}

func newLocal(t *testing.T, files map[string]string) *blobstore.LocalStore {
	t.Helper()
	src, err := blobstore.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	for key, body := range files {
		if _, err := src.Put(context.Background(), key, "application/pdf", strings.NewReader(body)); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	return src
}

func TestMigrateFiles(t *testing.T) {
	src := newLocal(t, map[string]string{"lab-results/p1/a.pdf": "%PDF-1.4 a"})
	dst := blobstore.NewMemoryStore("https://bucket.example")
	idx := &recordingIndex{keys: []string{"lab-results/p1/a.pdf", "lab-results/p1/missing.pdf"}, rewritten: map[string]string{}}

	report, err := migrateFiles(context.Background(), src, dst, []fileIndex{idx.index("lab result files")}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 2 || report.Failed != 1 || report.Rewritten != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if dst.Len() != 1 {
		t.Errorf("expected one object copied, got %d", dst.Len())
	}
	if got := idx.rewritten["lab-results/p1/a.pdf"]; got != dst.URL("lab-results/p1/a.pdf") {
		t.Errorf("expected url rewritten to %s, got %q", dst.URL("lab-results/p1/a.pdf"), got)
	}
	if _, ok := idx.rewritten["lab-results/p1/missing.pdf"]; ok {
		t.Error("a failed copy must not rewrite its row")
	}
}

func TestMigrateFiles_DryRun(t *testing.T) {
	src := newLocal(t, map[string]string{"patients/p1/photo.png": "png"})
	dst := blobstore.NewMemoryStore("https://bucket.example")
	idx := &recordingIndex{keys: []string{"patients/p1/photo.png"}, rewritten: map[string]string{}}

	report, err := migrateFiles(context.Background(), src, dst, []fileIndex{idx.index("patient photos")}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed != 0 || dst.Len() != 0 || len(idx.rewritten) != 0 {
		t.Errorf("dry run must not write: %+v, %d objects, %v", report, dst.Len(), idx.rewritten)
	}
}

func TestMigrateFiles_RerunRewritesSkipped(t *testing.T) {
	src := newLocal(t, map[string]string{"patients/p1/photo.png": "png"})
	dst := blobstore.NewMemoryStore("https://bucket.example")
	if _, err := dst.Put(context.Background(), "patients/p1/photo.png", "image/png", strings.NewReader("png")); err != nil {
		t.Fatalf("seed dst: %v", err)
	}
	idx := &recordingIndex{keys: []string{"patients/p1/photo.png"}, rewritten: map[string]string{}}

	report, err := migrateFiles(context.Background(), src, dst, []fileIndex{idx.index("patient photos")}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Results[0].Skipped || report.Rewritten != 1 {
		t.Errorf("expected skipped copy with rewritten row, got %+v", report)
	}
}

// ---------------------------------------------------------------------------
// CLI
// ---------------------------------------------------------------------------

func TestUploadLimit(t *testing.T) {
	if got := uploadLimit("10M"); got != "11534336" {
		t.Errorf("uploadLimit(10M) = %s", got)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{
		{"serve"}, {"migrate", "up"}, {"migrate", "status"}, {"admin", "create"}, {"storage", "migrate"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered (%v)", path, err)
		}
	}
	if root.PersistentFlags().Lookup("env-file") == nil {
		t.Error("expected --env-file flag")
	}
}

// ---------------------------------------------------------------------------
// newEcho
// ---------------------------------------------------------------------------

func newTestEcho(t *testing.T, dir string) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		Env:                   "development",
		JWTIssuer:             "healthnet",
		CORSOrigins:           []string{"http://localhost:3000"},
		RateLimitRPS:          50,
		RateLimitBurst:        100,
		EmergencyRateLimitRPS: 2,
		StorageBackend:        "local",
		UploadDir:             dir,
		UploadURLPrefix:       "/uploads",
		MaxUploadSize:         "10M",
		RequestTimeout:        time.Second,
	}
	revocations := auth.NewTokenRevocationStore(time.Minute)
	t.Cleanup(revocations.Close)
	a := &app{signingKey: []byte(strings.Repeat("k", 32)), revocations: revocations}
	return newEcho(cfg, a, zerolog.Nop())
}

func TestNewEcho_PhotosArePublic(t *testing.T) {
	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(dir, "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := store.Put(context.Background(), blobstore.ObjectKey(patient.PhotoDir+"/p1", "face.png"), "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEcho(t, dir)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, obj.URL, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s without token: expected 200, got %d: %s", obj.URL, rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestNewEcho_OtherUploadsNeedAuth(t *testing.T) {
	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(dir, "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := store.Put(context.Background(), "lab-results/p1/report.pdf", "application/pdf", strings.NewReader("secret-report"))
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEcho(t, dir)
	for _, target := range []string{obj.URL, "/api/v1/auth/me"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: expected 401, got %d", target, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret-report") {
			t.Errorf("GET %s leaked file contents", target)
		}
	}
}
