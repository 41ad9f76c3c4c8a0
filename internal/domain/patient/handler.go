package patient

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthnet/healthnet/internal/domain/doctor"
	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
	"github.com/healthnet/healthnet/pkg/pagination"
)

// AccessChecker reports whether a doctor may read a patient's record.
type AccessChecker interface {
	CheckAccess(ctx context.Context, doctorID, patientID uuid.UUID) error
}

type Handler struct {
	svc    *Service
	access AccessChecker
}

func NewHandler(svc *Service, access AccessChecker) *Handler {
	return &Handler{svc: svc, access: access}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/patients/me", auth.RequireExactRole(auth.RolePatient))
	me.GET("", h.GetMe)
	me.PUT("", h.UpdateMe)
	me.POST("/photo", h.UploadPhoto)
	me.GET("/emergency-info", h.GetEmergencyInfo)
	me.PUT("/emergency-info", h.UpdateEmergencyInfo)
	me.GET("/allergies", h.ListAllergies)
	me.POST("/allergies", h.AddAllergy)
	me.DELETE("/allergies/:id", h.RemoveAllergy)

	api.GET("/doctors/me/patients/:patient_id", h.GetChart, auth.RequireExactRole(auth.RoleDoctor))

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/patients", h.ListPatients)
	admin.GET("/patients/:id", h.GetPatient)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient record not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if he := blobstore.HTTPError(err); he.Code != http.StatusInternalServerError {
		return he
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

// -- Patient self-service --

func (h *Handler) GetMe(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
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
	p, err := h.svc.UpdateProfile(c.Request().Context(), id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadPhoto(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	f, err := blobstore.ReadFormFile(c, "photo", h.svc.PhotoPolicy(), false)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := h.svc.SetPhoto(c.Request().Context(), id, f.FileName, f.ContentType, f.Size, f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetEmergencyInfo(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	info, err := h.svc.GetEmergencyInfo(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) UpdateEmergencyInfo(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	var u EmergencyInfoUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	info, err := h.svc.UpdateEmergencyInfo(c.Request().Context(), id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) ListAllergies(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAllergies(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddAllergy(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	var a Allergy
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddAllergy(c.Request().Context(), id, &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) RemoveAllergy(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	allergyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RemoveAllergy(c.Request().Context(), id, allergyID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctor --

type chart struct {
	*Patient
	Allergies     []*Allergy     `json:"allergies"`
	EmergencyInfo *EmergencyInfo `json:"emergency_info"`
}

// GetChart returns an assigned patient's profile with allergies and
// emergency info.
func (h *Handler) GetChart(c echo.Context) error {
	doctorID, err := profileID(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	ctx := c.Request().Context()
	if err := h.access.CheckAccess(ctx, doctorID, patientID); err != nil {
		if doctor.IsNoAssignment(err) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	profile, err := h.svc.EmergencyProfile(ctx, patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart{Patient: profile.Patient, Allergies: profile.Allergies, EmergencyInfo: profile.Info})
}

// -- Admin --

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}
