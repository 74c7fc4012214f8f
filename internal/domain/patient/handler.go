package patient

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parakaleo/clinic/internal/platform/auth"
	"github.com/parakaleo/clinic/pkg/pagination"
)

type Handler struct {
	svc             *Service
	defaultLocation string
}

func NewHandler(svc *Service, defaultLocation string) *Handler {
	return &Handler{svc: svc, defaultLocation: defaultLocation}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RoleNurse, auth.RoleDoctor, auth.RolePharmacist, auth.RoleLabTech))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/family", h.GetFamilyMembers)
	read.GET("/patients/:id/photos", h.ListPhotos)

	write := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RoleNurse))
	write.POST("/patients", h.RegisterPatient)
	write.POST("/patients/check-duplicate", h.CheckDuplicate)
	write.POST("/patients/:id/link-visit", h.LinkToExisting)
	write.POST("/patients/:id/family", h.AddFamilyMember)
	write.POST("/patients/:id/photos", h.AddPhoto)
	write.PUT("/patients/:id", h.UpdatePatient)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	location := c.QueryParam("location")
	if location == "" {
		location = h.defaultLocation
	}
	p, err := h.svc.Register(c.Request().Context(), location, in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) CheckDuplicate(c echo.Context) error {
	var body struct {
		Name  string `json:"name"`
		Age   int    `json:"age"`
		Phone string `json:"phone"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.CheckDuplicate(c.Request().Context(), body.Name, body.Age, body.Phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) LinkToExisting(c echo.Context) error {
	var body struct {
		Priority string `json:"priority"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	visitID, err := h.svc.LinkToExisting(c.Request().Context(), c.Param("id"), body.Priority)
	if err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"visit_id": visitID})
}

func (h *Handler) AddFamilyMember(c echo.Context) error {
	var body struct {
		Relationship string `json:"relationship"`
		RegisterInput
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	location := c.QueryParam("location")
	if location == "" {
		location = h.defaultLocation
	}
	child, err := h.svc.AddFamilyMember(c.Request().Context(), c.Param("id"), location, body.Relationship, body.RegisterInput)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, child)
}

func (h *Handler) GetFamilyMembers(c echo.Context) error {
	members, err := h.svc.FamilyMembers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, members)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	existing, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.PatientID = existing.PatientID
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		if err == ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddPhoto(c echo.Context) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "photo file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	photo := &Photo{
		PatientID: c.Param("id"),
		FileName:  file.Filename,
		Data:      data,
	}
	if err := h.svc.AddPhoto(c.Request().Context(), photo); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, photo)
}

func (h *Handler) ListPhotos(c echo.Context) error {
	photos, err := h.svc.Photos(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]map[string]interface{}, len(photos))
	for i, p := range photos {
		out[i] = map[string]interface{}{
			"id":        p.ID,
			"file_name": p.FileName,
			"size":      len(p.Data),
			"taken_at":  p.TakenAt,
		}
	}
	return c.JSON(http.StatusOK, out)
}
