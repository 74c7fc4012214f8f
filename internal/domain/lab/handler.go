package lab

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	read.GET("/visits/:id/lab-tests", h.ListByVisit)
	read.GET("/lab-tests/:id/results", h.GetResults)
	read.GET("/lab-tests/schemas/:type", h.GetSchema)

	tech := api.Group("", auth.RequireRole(auth.RoleLabTech))
	tech.GET("/lab/queue", h.PendingQueue)
	tech.POST("/lab-tests/:id/complete", h.CompleteTest)
}

func (h *Handler) ListByVisit(c echo.Context) error {
	tests, err := h.svc.ListByVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) GetSchema(c echo.Context) error {
	tt := TestType(c.Param("type"))
	if !ValidTestType(tt) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown test type")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"test_type": tt,
		"fields":    SchemaFor(tt),
	})
}

func (h *Handler) PendingQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PendingQueue(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CompleteTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	var body struct {
		Values map[string]string `json:"values"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reqCtx := c.Request().Context()
	err = h.svc.CompleteTest(reqCtx, id, body.Values, auth.UserNameFromContext(reqCtx))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "lab test not found")
		case errors.Is(err, ErrAlreadyCompleted):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetResults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	results, err := h.svc.Results(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}
