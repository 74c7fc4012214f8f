package pharmacy

import (
	"context"
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
	read.GET("/visits/:id/prescriptions", h.ListByVisit)
	read.GET("/medications", h.ListPresets)

	pharmacist := api.Group("", auth.RequireRole(auth.RolePharmacist))
	pharmacist.GET("/pharmacy/queue", h.ReadyQueue)
	pharmacist.GET("/pharmacy/awaiting-lab", h.AwaitingLabQueue)
	pharmacist.POST("/prescriptions/:id/fill", h.Fill)
	pharmacist.POST("/prescriptions/:id/approve", h.Approve)
	pharmacist.POST("/prescriptions/:id/deny", h.Deny)
}

func (h *Handler) ListByVisit(c echo.Context) error {
	rx, err := h.svc.ListByVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) ListPresets(c echo.Context) error {
	activeOnly := c.QueryParam("all") == ""
	presets, err := h.svc.Presets(c.Request().Context(), activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, presets)
}

func (h *Handler) ReadyQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ReadyQueue(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AwaitingLabQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.AwaitingLabQueue(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Fill(c echo.Context) error {
	return h.resolve(c, h.svc.Fill)
}

func (h *Handler) Deny(c echo.Context) error {
	return h.resolve(c, h.svc.Deny)
}

func (h *Handler) resolve(c echo.Context, op func(ctx context.Context, id uuid.UUID, by string) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	reqCtx := c.Request().Context()
	if err := op(reqCtx, id, auth.UserNameFromContext(reqCtx)); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	if err := h.svc.Approve(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrAwaitingLab):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
