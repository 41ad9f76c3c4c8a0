package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "user-123",
			Issuer:    "healthnet",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role:      RoleDoctor,
		ProfileID: "doctor-9",
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured echo.Context
	h := JWTMiddleware(cfg)(func(c echo.Context) error {
		captured = c
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	if captured == nil {
		captured = c
	}
	return captured, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d, got nil error", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)

	c, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "healthnet"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-123" {
		t.Errorf("expected user-123, got %q", got)
	}
	if got := RoleFromContext(ctx); got != RoleDoctor {
		t.Errorf("expected doctor role, got %q", got)
	}
	if got := ProfileIDFromContext(ctx); got != "doctor-9" {
		t.Errorf("expected doctor-9, got %q", got)
	}
	if got := TokenIDFromContext(ctx); got != "jti-1" {
		t.Errorf("expected jti-1, got %q", got)
	}
	if ExpiresAtFromContext(ctx).IsZero() {
		t.Error("expected expiry on context")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(), []byte("some-other-key"))
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := createTestToken(t, claims, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_MissingExpiry(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = nil
	token := createTestToken(t, claims, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "someone-else"
	token := createTestToken(t, claims, testSigningKey)

	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "healthnet"}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	store := NewTokenRevocationStore(time.Minute)
	defer store.Close()
	store.Revoke("jti-1", time.Now().Add(time.Hour))

	token := createTestToken(t, validClaims(), testSigningKey)
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Revocations: store}, "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{
		SigningKey: testSigningKey,
		Skipper:    func(c echo.Context) bool { return true },
	}
	if _, err := runJWT(t, cfg, ""); err != nil {
		t.Fatalf("expected skipped request to pass, got %v", err)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "healthnet", time.Hour)

	tok, err := issuer.Issue("user-1", RolePatient, "patient-7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %q", tok.TokenType)
	}
	if time.Until(tok.ExpiresAt) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := ParseToken(tok.AccessToken, testSigningKey, "healthnet")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RolePatient || claims.ProfileID != "patient-7" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestTokenIssuer_RequiresSubjectAndRole(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "healthnet", time.Hour)
	if _, err := issuer.Issue("", RoleAdmin, ""); err == nil {
		t.Error("expected error for empty user id")
	}
	if _, err := issuer.Issue("user-1", "", ""); err == nil {
		t.Error("expected error for empty role")
	}
}
