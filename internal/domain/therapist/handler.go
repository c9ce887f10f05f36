package therapist

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapynet/clinic-server/internal/platform/auth"
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
	read.GET("/therapists", h.List)
	read.GET("/therapists/:id", h.Get)
	read.GET("/therapists/:id/load", h.VerifyLoad)

	write := api.Group("", auth.Require(writeReq))
	write.POST("/therapists", h.Create)
	write.PUT("/therapists/:id", h.Update)
	write.POST("/therapists/:id/deactivate", h.Deactivate)
	write.POST("/therapists/:id/activate", h.Activate)
}

func (h *Handler) Create(c echo.Context) error {
	var t Therapist
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope, _ := auth.ScopeFromContext(c.Request().Context())
	clinicID, err := scope.Resolve(t.ClinicID)
	if err != nil {
		return auth.HTTPError(err)
	}
	t.ClinicID = clinicID

	if err := h.svc.Create(c.Request().Context(), &t); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	t, err := h.svc.Get(c.Request().Context(), id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	status := Status(c.QueryParam("status"))
	therapists, total, err := h.svc.List(c.Request().Context(), scope, status, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(therapists, total, p.Limit, p.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Therapist
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	if err := h.svc.Update(c.Request().Context(), &t, scope); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Deactivate(c echo.Context) error {
	return h.setStatus(c, h.svc.Deactivate)
}

func (h *Handler) Activate(c echo.Context) error {
	return h.setStatus(c, h.svc.Activate)
}

func (h *Handler) setStatus(c echo.Context, fn func(ctx context.Context, id uuid.UUID, scope auth.ClinicFilter) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	if err := fn(c.Request().Context(), id, scope); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) VerifyLoad(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())
	stored, actual, err := h.svc.VerifyLoad(c.Request().Context(), id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	status := http.StatusOK
	if stored != actual {
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]interface{}{
		"consistent": stored == actual,
		"stored":     stored,
		"actual":     actual,
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "therapist not found")
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
