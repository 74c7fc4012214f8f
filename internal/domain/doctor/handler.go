package doctor

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	read.GET("/doctors", h.List)
	read.GET("/doctors/board", h.Board)
	read.GET("/doctors/:name/status", h.GetStatus)

	doc := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doc.POST("/doctors/:name/login", h.Login)
	doc.POST("/doctors/:name/claim", h.Claim)
	doc.POST("/doctors/:name/release", h.Release)
	doc.POST("/doctors/:name/logout", h.Logout)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/doctors", h.Register)
	admin.PUT("/doctors/:name/active", h.SetActive)
}

func (h *Handler) Register(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Register(c.Request().Context(), body.Name)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c echo.Context) error {
	activeOnly := c.QueryParam("all") == ""
	doctors, err := h.svc.List(c.Request().Context(), activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) SetActive(c echo.Context) error {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetActive(c.Request().Context(), c.Param("name"), body.Active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Board(c echo.Context) error {
	board, err := h.svc.Board(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, board)
}

func (h *Handler) GetStatus(c echo.Context) error {
	s, err := h.svc.Status(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor status not found")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Login(c echo.Context) error {
	s, err := h.svc.Login(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Claim(c echo.Context) error {
	var body struct {
		PatientID string `json:"patient_id"`
		Version   int64  `json:"version"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.Claim(c.Request().Context(), c.Param("name"), body.PatientID, body.Version)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "doctor status not found")
		case errors.Is(err, ErrStale), errors.Is(err, ErrPatientClaimed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Release(c echo.Context) error {
	s, err := h.svc.Release(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) Logout(c echo.Context) error {
	s, err := h.svc.Logout(c.Request().Context(), c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}
