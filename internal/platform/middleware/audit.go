package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthnet/healthnet/internal/platform/auth"
)

// AuditEntry records who touched which health record, when and from where.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	ProfileID  string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Public     bool
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// Audit logs one phi_access event per request under /api/v1/ and for every
// public SafePass lookup under /emergency/. It must run after the JWT
// middleware so the caller identity is on the request context.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     httpMethodToAction(req.Method),
				Resource:   extractResource(path),
				PatientID:  extractPatientID(c),
				Public:     strings.HasPrefix(path, "/emergency/"),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			entry.ProfileID = auth.ProfileIDFromContext(ctx)
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			evt := logger.Info()
			if entry.Public {
				evt = logger.Warn()
			}
			evt.
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("profile_id", entry.ProfileID).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Str("user_agent", entry.UserAgent).
				Int("status", entry.StatusCode).
				Bool("public", entry.Public).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, "/emergency/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first path segment after the API prefix:
//   - /api/v1/patients/me/allergies -> patients
//   - /api/v1/diagnoses/123         -> diagnoses
//   - /emergency/abc                -> emergency
func extractResource(path string) string {
	var rest string
	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		rest = strings.TrimPrefix(path, "/api/v1/")
	case strings.HasPrefix(path, "/emergency/"):
		return "emergency"
	}
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// extractPatientID finds the patient a request concerns: the :patient_id
// route param, a UUID after /patients/, or the caller's own profile on
// /patients/me routes.
func extractPatientID(c echo.Context) string {
	if pid := c.Param("patient_id"); pid != "" {
		return pid
	}

	path := c.Request().URL.Path
	if _, rest, ok := strings.Cut(path, "/patients/"); ok {
		seg, _, _ := strings.Cut(rest, "/")
		if seg == "me" && auth.RoleFromContext(c.Request().Context()) == auth.RolePatient {
			return auth.ProfileIDFromContext(c.Request().Context())
		}
		if isUUIDLike(seg) {
			return seg
		}
	}

	if patient := c.QueryParam("patient_id"); isUUIDLike(patient) {
		return patient
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
