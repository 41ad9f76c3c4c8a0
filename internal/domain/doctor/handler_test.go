package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthnet/healthnet/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func withActor(c echo.Context, role string, profileID uuid.UUID) {
	ctx := auth.WithClaims(c.Request().Context(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Role:             role,
		ProfileID:        profileID.String(),
	})
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestHandler_GetMe(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, auth.RoleDoctor, d.ID)

	if err := h.GetMe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), d.LicenseNumber) {
		t.Errorf("expected license number in body: %s", rec.Body.String())
	}
}

func TestHandler_GetMe_NoProfile(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GetMe(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_UpdateMe(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"hospital":"Central Hospital"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, auth.RoleDoctor, d.ID)

	if err := h.UpdateMe(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := h.svc.Get(context.Background(), d.ID); got.Hospital != "Central Hospital" {
		t.Errorf("expected hospital to be updated, got %q", got.Hospital)
	}
}

func TestHandler_CreateAssignment(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	adminID := uuid.New()

	body := `{"doctor_id":"` + d.ID.String() + `","patient_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, auth.RoleAdmin, adminID)

	if err := h.CreateAssignment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), adminID.String()) {
		t.Errorf("expected assigned_by in body: %s", rec.Body.String())
	}
}

func TestHandler_CreateAssignment_Conflict(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	patientID := uuid.New()
	h.svc.Assign(context.Background(), d.ID, patientID, nil, "")

	body := `{"doctor_id":"` + d.ID.String() + `","patient_id":"` + patientID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateAssignment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_EndAssignment(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	a, _ := h.svc.Assign(context.Background(), d.ID, uuid.New(), nil, "")

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.EndAssignment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListAssignments_InvalidFilter(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?doctor_id=nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAssignments(c); err == nil {
		t.Error("expected error for invalid doctor_id")
	}
}

func TestHandler_ListMyPatients(t *testing.T) {
	h, e := newTestHandler()
	d := createTestDoctor(t, h.svc)
	h.svc.Assign(context.Background(), d.ID, uuid.New(), nil, "")
	h.svc.Assign(context.Background(), d.ID, uuid.New(), nil, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, auth.RoleDoctor, d.ID)

	if err := h.ListMyPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("expected total 2, got %s", rec.Body.String())
	}
}
