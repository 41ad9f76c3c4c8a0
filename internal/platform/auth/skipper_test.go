package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		route  string
		public bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/auth/register", true},
		{"/emergency/:code", true},
		{"/uploads/*", false},
		{"/uploads*", false},
		{"/api/v1/auth/me", false},
		{"/api/v1/auth/logout", false},
		{"/api/v1/patients/me/safepass", false},
		{"/api/v1/patients/me/safepass/qr.png", false},
		{"/api/v1/admin/stats", false},
		{"/health/extra", false},
		{"/", false},
	}

	e := echo.New()
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetPath(tt.route)
		if got := AuthSkipper(c); got != tt.public {
			t.Errorf("AuthSkipper(%s) = %v, want %v", tt.route, got, tt.public)
		}
	}
}

func TestAuthSkipper_UsesRoutePattern(t *testing.T) {
	// The concrete URL is irrelevant; only the matched route counts.
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/emergency/0123456789abcdef0123456789abcdef", nil), httptest.NewRecorder())
	if AuthSkipper(c) {
		t.Error("an unrouted context has no pattern and must not be skipped")
	}
	c.SetPath("/emergency/:code")
	if !AuthSkipper(c) {
		t.Error("expected the SafePass route to be public")
	}
}

func TestSkipperWith(t *testing.T) {
	skip := SkipperWith("/uploads/photos/*")
	e := echo.New()

	for route, want := range map[string]bool{
		"/uploads/photos/*":      true,
		"/uploads*":              false,
		"/uploads/lab-results/*": false,
		"/emergency/:code":       true,
		"/api/v1/auth/me":        false,
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetPath(route)
		if got := skip(c); got != want {
			t.Errorf("SkipperWith(%s) = %v, want %v", route, got, want)
		}
	}
}
