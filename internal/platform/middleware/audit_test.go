package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthnet/healthnet/internal/platform/auth"
)

const testPatientID = "0b6f6a52-4c4d-4a1e-9d0a-3f8e1a2b3c4d"

func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withAuth(userID, role, profileID string) func(*http.Request) {
	return func(r *http.Request) {
		claims := &auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
			Role:             role,
			ProfileID:        profileID,
		}
		*r = *r.WithContext(auth.WithClaims(r.Context(), claims))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runAudit(t *testing.T, c echo.Context, handler echo.HandlerFunc) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	Audit(zerolog.New(&buf))(handler)(c)
	if buf.Len() == 0 {
		return nil
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("audit line is not JSON: %v", err)
	}
	return line
}

func TestAudit_DoctorReadsPatientDiagnoses(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/doctors/me/patients/"+testPatientID+"/diagnoses",
		withAuth("user-1", auth.RoleDoctor, "doctor-1"))
	c.SetParamNames("patient_id")
	c.SetParamValues(testPatientID)
	c.Set("request_id", "req-123")

	line := runAudit(t, c, okHandler)
	if line == nil {
		t.Fatal("expected an audit event")
	}
	if line["type"] != "phi_access" || line["action"] != "read" {
		t.Errorf("unexpected audit event: %v", line)
	}
	if line["user_id"] != "user-1" || line["profile_id"] != "doctor-1" {
		t.Errorf("expected caller identity, got %v", line)
	}
	if line["patient_id"] != testPatientID {
		t.Errorf("expected patient id from route param, got %v", line["patient_id"])
	}
	if line["resource"] != "doctors" || line["request_id"] != "req-123" {
		t.Errorf("unexpected resource or request id: %v", line)
	}
	if line["public"] != false {
		t.Errorf("expected authenticated access, got %v", line["public"])
	}
}

func TestAudit_PatientOwnRecord(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/v1/patients/me/allergies",
		withAuth("user-2", auth.RolePatient, "patient-2"))

	line := runAudit(t, c, okHandler)
	if line["patient_id"] != "patient-2" {
		t.Errorf("expected own profile id, got %v", line["patient_id"])
	}
	if line["action"] != "create" {
		t.Errorf("expected create action, got %v", line["action"])
	}
}

func TestAudit_PublicEmergencyLookup(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/emergency/abcdef")

	line := runAudit(t, c, okHandler)
	if line["public"] != true || line["resource"] != "emergency" {
		t.Errorf("expected public emergency event, got %v", line)
	}
	if line["level"] != "warn" {
		t.Errorf("expected warn level for public access, got %v", line["level"])
	}
}

func TestAudit_RecordsErrorStatus(t *testing.T) {
	c, _ := newTestContext(http.MethodDelete, "/api/v1/lab-results/"+testPatientID)

	line := runAudit(t, c, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	})
	if line["status"] != float64(403) || line["action"] != "delete" {
		t.Errorf("unexpected event: %v", line)
	}
}

func TestAudit_SkipsNonAuditablePaths(t *testing.T) {
	for _, path := range []string{"/health", "/health/db", "/uploads/x.png"} {
		c, _ := newTestContext(http.MethodGet, path)
		if line := runAudit(t, c, okHandler); line != nil {
			t.Errorf("expected no audit event for %s, got %v", path, line)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestExtractResource(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/patients/me/allergies", "patients"},
		{"/api/v1/diagnoses/123", "diagnoses"},
		{"/api/v1/admin/stats", "admin"},
		{"/emergency/abc", "emergency"},
		{"/api/v1/", "unknown"},
	}
	for _, tt := range tests {
		if got := extractResource(tt.path); got != tt.want {
			t.Errorf("extractResource(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtractPatientID_AdminPath(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/admin/patients/"+testPatientID)
	if got := extractPatientID(c); got != testPatientID {
		t.Errorf("expected %s, got %q", testPatientID, got)
	}

	c, _ = newTestContext(http.MethodGet, "/api/v1/admin/assignments?patient_id="+testPatientID)
	if got := extractPatientID(c); got != testPatientID {
		t.Errorf("expected %s from query, got %q", testPatientID, got)
	}

	c, _ = newTestContext(http.MethodGet, "/api/v1/admin/patients?patient_id=not-a-uuid")
	if got := extractPatientID(c); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}
