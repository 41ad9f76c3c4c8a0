package doctor

import (
	"errors"
	"net/http"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/doctors/me", auth.RequireExactRole(auth.RoleDoctor))
	me.GET("", h.GetMe)
	me.PUT("", h.UpdateMe)
	me.GET("/patients", h.ListMyPatients)

	api.GET("/patients/me/doctors", h.ListMyDoctors, auth.RequireExactRole(auth.RolePatient))

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/doctors", h.ListDoctors)
	admin.GET("/assignments", h.ListAssignments)
	admin.POST("/assignments", h.CreateAssignment)
	admin.DELETE("/assignments/:id", h.EndAssignment)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrUnknownParent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyEnded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoAssignment):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func profileID(c echo.Context) (uuid.UUID, error) {
	actor, err := auth.ActorFromContext(c.Request().Context())
	if err != nil || actor.ProfileID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "no profile bound to this account")
	}
	return actor.ProfileID, nil
}

// -- Doctor self-service --

func (h *Handler) GetMe(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	var u ProfileUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateProfile(c.Request().Context(), id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListMyPatients(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMyDoctors(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListDoctorsForPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Admin --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListAssignments(c echo.Context) error {
	var f AssignmentFilter
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	f.ActiveOnly = c.QueryParam("active") == "true"

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAssignments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type assignRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Notes     string    `json:"notes"`
}

func (h *Handler) CreateAssignment(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var assignedBy *uuid.UUID
	if actor, err := auth.ActorFromContext(c.Request().Context()); err == nil && actor.ProfileID != uuid.Nil {
		assignedBy = &actor.ProfileID
	}
	a, err := h.svc.Assign(c.Request().Context(), req.DoctorID, req.PatientID, assignedBy, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) EndAssignment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.EndAssignment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
