package consultation

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
		{Role: auth.RoleTherapist, ClinicScoped: true},
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
	read.GET("/consultations", h.List)
	read.GET("/consultations/:id", h.Get)
	read.GET("/clients/:id/consultation", h.GetByClient)

	write := api.Group("", auth.Require(writeReq))
	write.POST("/consultations", h.Create)
	write.PUT("/consultations/:id", h.Update)
	write.POST("/consultations/:id/status", h.TransitionStatus)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.ClientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	cons, err := h.svc.Create(ctx, in, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	cons, err := h.svc.Update(ctx, id, in, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) TransitionStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	cons, err := h.svc.TransitionStatus(ctx, id, req.Status, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	cons, err := h.svc.Get(ctx, id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) GetByClient(c echo.Context) error {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	cons, err := h.svc.GetByClient(ctx, clientID, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	items, total, err := h.svc.List(ctx, scope, Status(c.QueryParam("status")), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func toHTTPError(err error) error {
	var inv *workflow.InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConsultationExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRecordImmutable), errors.Is(err, ErrClientNotReady), errors.Is(err, ErrTherapistMismatch):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &inv):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
