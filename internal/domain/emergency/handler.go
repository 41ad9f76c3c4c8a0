package emergency

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient's SafePass management endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients/me/safepass", auth.RequireExactRole(auth.RolePatient))
	g.GET("", h.Current)
	g.POST("", h.Issue)
	g.DELETE("", h.Revoke)
	g.GET("/qr.png", h.QRImage)
	g.GET("/scans", h.ListScans)
}

// RegisterPublicRoutes mounts the unauthenticated lookup at the server root.
func (h *Handler) RegisterPublicRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/emergency/:code", h.Lookup, mw...)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "safepass not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func patientOf(c echo.Context) (uuid.UUID, error) {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if !actor.IsPatient() || actor.ProfileID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "no patient profile bound to this account")
	}
	return actor.ProfileID, nil
}

type codeResponse struct {
	*QRCode
	URL          string `json:"url"`
	QRImageURL   string `json:"qr_image_url"`
	ScansLast24h int    `json:"scans_last_24h"`
}

func (h *Handler) respond(c echo.Context, status int, q *QRCode) error {
	resp := codeResponse{QRCode: q, URL: h.svc.URL(q.Code), QRImageURL: "/api/v1/patients/me/safepass/qr.png"}
	n, err := h.svc.RecentScans(c.Request().Context(), q.PatientID, 24*time.Hour)
	if err != nil {
		return httpError(err)
	}
	resp.ScansLast24h = n
	return c.JSON(status, resp)
}

func (h *Handler) Current(c echo.Context) error {
	pid, err := patientOf(c)
	if err != nil {
		return err
	}
	q, err := h.svc.Current(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return h.respond(c, http.StatusOK, q)
}

func (h *Handler) Issue(c echo.Context) error {
	pid, err := patientOf(c)
	if err != nil {
		return err
	}
	q, err := h.svc.Issue(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	return h.respond(c, http.StatusCreated, q)
}

func (h *Handler) Revoke(c echo.Context) error {
	pid, err := patientOf(c)
	if err != nil {
		return err
	}
	if err := h.svc.Revoke(c.Request().Context(), pid); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) QRImage(c echo.Context) error {
	pid, err := patientOf(c)
	if err != nil {
		return err
	}
	png, err := h.svc.QRImage(c.Request().Context(), pid)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *Handler) ListScans(c echo.Context) error {
	pid, err := patientOf(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListScans(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Lookup(c echo.Context) error {
	view, err := h.svc.Lookup(c.Request().Context(), c.Param("code"), Scanner{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, view)
}
