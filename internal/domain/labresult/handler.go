package labresult

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthnet/healthnet/internal/platform/auth"
	"github.com/healthnet/healthnet/internal/platform/blobstore"
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
	doc := api.Group("/doctors/me/patients/:patient_id/lab-results", auth.RequireExactRole(auth.RoleDoctor))
	doc.GET("", h.ListForPatient)
	doc.POST("", h.Create)

	api.GET("/patients/me/lab-results", h.ListOwn, auth.RequireExactRole(auth.RolePatient))
	api.GET("/admin/patients/:patient_id/lab-results", h.ListForPatient, auth.RequireRole(auth.RoleAdmin))

	g := api.Group("/lab-results")
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update, auth.RequireExactRole(auth.RoleDoctor))
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/file", h.DownloadFile)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab result not found")
	case errors.Is(err, ErrNoFile):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return blobstore.HTTPError(err)
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

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, "collected_at must be RFC 3339 or YYYY-MM-DD")
}

func optional(s string) *string {
	s = middleware.SanitizeString(s)
	if s == "" {
		return nil
	}
	return &s
}

// createRequest binds from JSON or from the text fields of a multipart form.
type createRequest struct {
	DiagnosisID    string `json:"diagnosis_id" form:"diagnosis_id"`
	TestName       string `json:"test_name" form:"test_name"`
	ResultValue    string `json:"result_value" form:"result_value"`
	Unit           string `json:"unit" form:"unit"`
	ReferenceRange string `json:"reference_range" form:"reference_range"`
	Flag           string `json:"flag" form:"flag"`
	Notes          string `json:"notes" form:"notes"`
	CollectedAt    string `json:"collected_at" form:"collected_at"`
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
	collected, err := parseTime(req.CollectedAt)
	if err != nil {
		return err
	}

	l := &LabResult{
		PatientID:      patientID,
		TestName:       middleware.SanitizeString(req.TestName),
		ResultValue:    middleware.SanitizeString(req.ResultValue),
		Unit:           optional(req.Unit),
		ReferenceRange: optional(req.ReferenceRange),
		Flag:           req.Flag,
		Notes:          optional(req.Notes),
		CollectedAt:    collected,
	}
	if req.DiagnosisID != "" {
		id, err := uuid.Parse(req.DiagnosisID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnosis_id")
		}
		l.DiagnosisID = &id
	}

	var att *Attachment
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		f, err := blobstore.ReadFormFile(c, "file", h.svc.FilePolicy(), true)
		if err != nil {
			return err
		}
		if f != nil {
			defer f.Close()
			att = &Attachment{FileName: f.FileName, ContentType: f.ContentType, Size: f.Size, Body: f}
		}
	}

	if err := h.svc.Create(c.Request().Context(), actor, l, att); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
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
	l, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
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
	for _, p := range []*string{u.TestName, u.ResultValue, u.Unit, u.ReferenceRange, u.Notes} {
		if p != nil {
			*p = middleware.SanitizeString(*p)
		}
	}
	l, err := h.svc.Update(c.Request().Context(), actor, id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DownloadFile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	rc, obj, name, err := h.svc.OpenFile(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return blobstore.Serve(c, rc, obj, name)
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
	return h.list(c, actor, patientID)
}

func (h *Handler) ListOwn(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	return h.list(c, actor, actor.ProfileID)
}

func (h *Handler) list(c echo.Context, actor auth.Actor, patientID uuid.UUID) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, c.QueryParam("flag"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
