package visit

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parakaleo/clinic/internal/platform/auth"
	"github.com/parakaleo/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist, auth.RoleLabTech))
	read.GET("/visits/:id", h.GetVisit)
	read.GET("/visits/:id/vitals", h.GetVitals)
	read.GET("/patients/:id/visits", h.ListPatientVisits)
	read.GET("/queues/:status", h.GetQueue)

	checkin := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RoleNurse))
	checkin.POST("/visits", h.CreateVisit)
	checkin.POST("/patients/:id/family-visits", h.CreateFamilyVisits)

	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.POST("/visits/:id/vitals", h.RecordVitals)
	nurse.GET("/family-queues/:session", h.GetFamilyQueue)
	nurse.POST("/family-queues/:session/advance", h.AdvanceFamilyQueue)
	nurse.POST("/family-queues/:session/skip", h.SkipFamilyQueue)
	nurse.DELETE("/family-queues/:session", h.EndFamilyQueue)

	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleLabTech))
	clinical.POST("/visits/:id/return-to-provider", h.ReturnToProvider)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var body struct {
		PatientID string   `json:"patient_id"`
		Priority  Priority `json:"priority"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Create(c.Request().Context(), body.PatientID, body.Priority)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	v, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPatientVisits(c echo.Context) error {
	visits, err := h.svc.ListByPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, visits)
}

func (h *Handler) GetQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.Queue(c.Request().Context(), Status(c.Param("status")), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) RecordVitals(c echo.Context) error {
	var vs VitalSigns
	if err := c.Bind(&vs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	vs.VisitID = c.Param("id")
	if err := h.svc.RecordVitals(c.Request().Context(), &vs); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		case errors.Is(err, ErrVitalsRecorded):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			var invalid *ErrInvalidTransition
			if errors.As(err, &invalid) {
				return echo.NewHTTPError(http.StatusConflict, err.Error())
			}
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, vs)
}

func (h *Handler) GetVitals(c echo.Context) error {
	vs, err := h.svc.Vitals(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vitals not found")
	}
	return c.JSON(http.StatusOK, vs)
}

func (h *Handler) ReturnToProvider(c echo.Context) error {
	if err := h.svc.ReturnToProvider(c.Request().Context(), c.Param("id")); err != nil {
		var invalid *ErrInvalidTransition
		if errors.As(err, &invalid) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "visit not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateFamilyVisits(c echo.Context) error {
	var body struct {
		Priority Priority `json:"priority"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := h.svc.CreateFamilyVisits(c.Request().Context(), c.Param("id"), body.Priority)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) GetFamilyQueue(c echo.Context) error {
	q, err := h.svc.FamilyQueueState(c.Param("session"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) AdvanceFamilyQueue(c echo.Context) error {
	q, err := h.svc.AdvanceFamilyQueue(c.Param("session"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) SkipFamilyQueue(c echo.Context) error {
	q, err := h.svc.SkipFamilyQueue(c.Param("session"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) EndFamilyQueue(c echo.Context) error {
	h.svc.EndFamilyQueue(c.Param("session"))
	return c.NoContent(http.StatusNoContent)
}
