package session

import (
	"errors"
	"net/http"
	"time"

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
	read.GET("/sessions/:id", h.Get)
	read.GET("/clients/:id/sessions", h.ListByClient)
	read.GET("/therapists/:id/sessions", h.ListByTherapist)

	write := api.Group("", auth.Require(writeReq))
	write.POST("/sessions", h.Create)
	write.POST("/sessions/:id/schedule", h.Schedule)
	write.POST("/sessions/:id/replan", h.Replan)
	write.POST("/sessions/:id/start", h.Start)
	write.POST("/sessions/:id/complete", h.Complete)
	write.POST("/sessions/:id/cancel", h.Cancel)
	write.DELETE("/sessions/:id", h.Delete)
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

	sess, err := h.svc.Create(ctx, in, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (h *Handler) Schedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScheduledAt.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_at is required")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	sess, err := h.svc.Schedule(ctx, id, req.ScheduledAt, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Replan(c echo.Context) error {
	return h.simple(c, func(ctx echo.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
		return h.svc.Replan(ctx.Request().Context(), id, scope)
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.simple(c, func(ctx echo.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
		return h.svc.Start(ctx.Request().Context(), id, scope)
	})
}

type completeRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	sess, err := h.svc.Complete(ctx, id, req.Notes, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.simple(c, func(ctx echo.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
		return h.svc.Cancel(ctx.Request().Context(), id, scope)
	})
}

func (h *Handler) simple(c echo.Context, fn func(echo.Context, uuid.UUID, auth.ClinicFilter) (*Session, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scope, _ := auth.ScopeFromContext(c.Request().Context())

	sess, err := fn(c, id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	if err := h.svc.Delete(ctx, id, scope); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Get(c echo.Context) error {
	return h.simple(c, func(ctx echo.Context, id uuid.UUID, scope auth.ClinicFilter) (*Session, error) {
		return h.svc.Get(ctx.Request().Context(), id, scope)
	})
}

func (h *Handler) ListByClient(c echo.Context) error {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	items, total, err := h.svc.ListByClient(ctx, clientID, scope, p.Limit, p.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) ListByTherapist(c echo.Context) error {
	therapistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	filter := ListFilter{Status: Status(c.QueryParam("status"))}
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		filter.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		filter.To = &t
	}

	items, total, err := h.svc.ListByTherapist(ctx, therapistID, scope, filter, p.Limit, p.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func toHTTPError(err error) error {
	var inv *workflow.InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSessionNumber), errors.Is(err, ErrScheduleConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSessionNotDeletable), errors.Is(err, ErrClientNotReady):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &inv):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
