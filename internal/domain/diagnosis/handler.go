package diagnosis

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/middleware"
	"github.com/healthnet/healthnet/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doc := api.Group("/doctors/me", auth.RequireExactRole(auth.RoleDoctor))
	doc.GET("/diagnoses", h.ListMine)
	doc.GET("/patients/:patient_id/diagnoses", h.ListForPatient)
	doc.POST("/patients/:patient_id/diagnoses", h.Create)

	api.GET("/patients/me/diagnoses", h.ListOwn, auth.RequireExactRole(auth.RolePatient))
	api.GET("/admin/patients/:patient_id/diagnoses", h.ListForPatient, auth.RequireRole(auth.RoleAdmin))

	d := api.Group("/diagnoses")
	d.GET("/:id", h.Get)
	d.PUT("/:id", h.Update, auth.RequireExactRole(auth.RoleDoctor))
	d.POST("/:id/complete", h.Complete, auth.RequireExactRole(auth.RoleDoctor))
	d.POST("/:id/reopen", h.Reopen, auth.RequireRole(auth.RoleAdmin))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "diagnosis not found")
	case errors.Is(err, ErrLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func actorOf(c echo.Context) (auth.Actor, error) {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if !actor.IsAdmin() && actor.ProfileID == uuid.Nil {
		return auth.Actor{}, echo.NewHTTPError(http.StatusForbidden, "no profile bound to this account")
	}
	return actor, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := middleware.SanitizeString(*s)
	return &v
}

type createRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ICDCode     *string `json:"icd_code"`
	Severity    *string `json:"severity"`
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := &Diagnosis{
		PatientID:   patientID,
		Title:       middleware.SanitizeString(req.Title),
		Description: middleware.SanitizeString(req.Description),
		ICDCode:     sanitizePtr(req.ICDCode),
		Severity:    req.Severity,
	}
	if err := h.svc.Create(c.Request().Context(), actor, d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.Title = sanitizePtr(u.Title)
	u.Description = sanitizePtr(u.Description)
	u.ICDCode = sanitizePtr(u.ICDCode)
	d, err := h.svc.Update(c.Request().Context(), actor, id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Complete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Complete(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Reopen(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Reopen(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	patientID, err := uuidParam(c, "patient_id")
	if err != nil {
		return err
	}
	return h.listByPatient(c, actor, patientID)
}

func (h *Handler) ListOwn(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	return h.listByPatient(c, actor, actor.ProfileID)
}

func (h *Handler) listByPatient(c echo.Context, actor auth.Actor, patientID uuid.UUID) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), actor.ProfileID, c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
