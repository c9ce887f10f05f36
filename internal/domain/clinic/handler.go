package clinic

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/pkg/pagination"
)

// Access requirements, declared once next to the routes that use them.
var (
	readReq = auth.Requirement{
		{Role: auth.RoleAdministrator},
		{Role: auth.RoleClinicAdmin, ClinicScoped: true},
		{Role: auth.RoleTherapist, ClinicScoped: true},
	}
	writeReq = auth.Requirement{
		{Role: auth.RoleAdministrator},
	}
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.Require(readReq))
	read.GET("/clinics", h.List)
	read.GET("/clinics/:id", h.Get)

	write := api.Group("", auth.Require(writeReq))
	write.POST("/clinics", h.Create)
	write.PUT("/clinics/:id", h.Update)
	write.DELETE("/clinics/:id", h.Deactivate)
}

func (h *Handler) Create(c echo.Context) error {
	var cl Clinic
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &cl); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	cl, err := h.svc.Get(c.Request().Context(), id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	clinics, total, err := h.svc.List(c.Request().Context(), scope, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(clinics, total, p.Limit, p.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cl Clinic
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id
	if err := h.svc.Update(c.Request().Context(), &cl); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "clinic not found")
	case errors.Is(err, ErrSlugTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
