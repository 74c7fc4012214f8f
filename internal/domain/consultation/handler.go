package consultation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parakaleo/clinic/internal/domain/visit"
	"github.com/parakaleo/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist, auth.RoleLabTech))
	read.GET("/visits/:id/consultation", h.GetConsultation)
	read.GET("/visits/:id/eye-exam", h.GetEyeExam)
	read.GET("/patients/:id/consultations", h.GetHistory)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/visits/:id/consultation", h.Complete)
	doctor.POST("/visits/:id/eye-exam", h.CompleteEyeExam)
}

func (h *Handler) Complete(c echo.Context) error {
	var in CompleteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.Consultation.VisitID = c.Param("id")
	if in.Consultation.DoctorName == "" {
		in.Consultation.DoctorName = auth.UserNameFromContext(c.Request().Context())
	}

	result, err := h.svc.Complete(c.Request().Context(), in)
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetConsultation(c echo.Context) error {
	result, err := h.svc.GetByVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetHistory(c echo.Context) error {
	history, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) CompleteEyeExam(c echo.Context) error {
	var e EyeExamination
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.VisitID = c.Param("id")
	if e.ExaminerName == "" {
		e.ExaminerName = auth.UserNameFromContext(c.Request().Context())
	}
	if err := h.svc.CompleteEyeExam(c.Request().Context(), &e); err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEyeExam(c echo.Context) error {
	e, err := h.svc.EyeExam(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "eye examination not found")
	}
	return c.JSON(http.StatusOK, e)
}

func mapErr(err error) error {
	var invalid *visit.ErrInvalidTransition
	switch {
	case errors.Is(err, visit.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "visit not found")
	case errors.Is(err, ErrAlreadyCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
