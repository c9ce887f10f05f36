package assignment

import (
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
	// Only administrators and clinic admins manage assignments;
	// therapists receive them.
	manageReq = auth.Requirement{
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
	read.GET("/assignments/:id", h.Get)
	read.GET("/clients/:id/assignment", h.Active)
	read.GET("/clients/:id/assignments", h.History)
	read.GET("/therapists/:id/assignments", h.Caseload)

	manage := api.Group("", auth.Require(manageReq))
	manage.POST("/assignments", h.Assign)
	manage.POST("/assignments/:id/transfer", h.Transfer)
	manage.POST("/assignments/:id/complete", h.Complete)
	manage.POST("/assignments/:id/cancel", h.Cancel)
}

func (h *Handler) Assign(c echo.Context) error {
	var in AssignInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.ClientID == uuid.Nil || in.TherapistID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id and therapist_id are required")
	}
	ctx := c.Request().Context()
	p := auth.PrincipalFromContext(ctx)
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.Assign(ctx, p.UserID, in, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type transferRequest struct {
	TherapistID uuid.UUID `json:"therapist_id"`
	Reason      string    `json:"reason"`
}

func (h *Handler) Transfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TherapistID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "therapist_id is required")
	}
	if req.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}
	ctx := c.Request().Context()
	p := auth.PrincipalFromContext(ctx)
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.Transfer(ctx, p.UserID, id, req.TherapistID, req.Reason, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.Complete(ctx, id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.Cancel(ctx, id, req.Reason, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.Get(ctx, id, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Active(c echo.Context) error {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	a, err := h.svc.ActiveForClient(ctx, clientID, scope)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) History(c echo.Context) error {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	items, total, err := h.svc.History(ctx, clientID, scope, p.Limit, p.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Caseload(c echo.Context) error {
	therapistID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	scope, _ := auth.ScopeFromContext(ctx)

	items, total, err := h.svc.Caseload(ctx, therapistID, scope, Status(c.QueryParam("status")), p.Limit, p.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoActiveAssignment),
		errors.Is(err, ErrTherapistNotFound), errors.Is(err, ErrClientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateActiveAssignment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAssignmentNotActive), errors.Is(err, ErrTherapistInactive),
		errors.Is(err, ErrSameTherapist):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrMissingClinicAssociation):
		return auth.HTTPError(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
