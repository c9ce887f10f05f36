package client

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapynet/clinic-server/internal/platform/auth"
	"github.com/therapynet/clinic-server/internal/platform/workflow"
	"github.com/therapynet/clinic-server/pkg/pagination"
)

var (
	readReq = auth.Requirement{
		{Role: auth.RoleAdministrator},
		{Role: auth.RoleClinicAdmin, ClinicScoped: true},
		{Role: auth.RoleTherapist, ClinicScoped: true},
	}
	writeReq = auth.Requirement{
		{Role: auth.RoleAdministrator},
		{Role: auth.RoleClinicAdmin, ClinicScoped: true},
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
	read.GET("/clients", h.List)
	read.GET("/clients/:id", h.Get)

	write := api.Group("", auth.Require(writeReq))
	write.POST("/clients", h.Create)
	write.PUT("/clients/:id", h.Update)
	write.DELETE("/clients/:id", h.Archive)
}

func (h *Handler) Create(c echo.Context) error {
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope, _ := auth.ScopeFromContext(c.Request().Context())
	clinicID, err := scope.Resolve(cl.ClinicID)
	if err != nil {
		return auth.HTTPError(err)
	}
	cl.ClinicID = clinicID

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
	status := Status(c.QueryParam("status"))
	clients, total, err := h.svc.List(c.Request().Context(), scope, status, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(clients, total, p.Limit, p.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl.ID = id
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	if err := h.svc.Update(c.Request().Context(), &cl, scope); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	if err := h.svc.Archive(c.Request().Context(), id, scope); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toHTTPError(err error) error {
	var invalid *workflow.InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "client not found")
	case errors.Is(err, ErrArchived):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, invalid.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
