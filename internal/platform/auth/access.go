package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Access-decision failure modes. Handlers map these to HTTP status codes;
// nothing below the HTTP layer formats user-facing messages.
var (
	// ErrUnauthenticated means no principal was present on the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the principal's role or clinic scope does not
	// satisfy the endpoint's requirement.
	ErrForbidden = errors.New("forbidden")

	// ErrMissingClinicAssociation means the principal's role requires a
	// home clinic but the account has none. Deliberately distinct from
	// ErrForbidden: this is a data-setup problem, not a permissions one.
	ErrMissingClinicAssociation = errors.New("account has no clinic association")
)

// Alternative is one acceptable role/scope combination for an endpoint.
// ClinicScoped alternatives additionally require the principal's home
// clinic to match the target resource's clinic.
type Alternative struct {
	Role         Role
	ClinicScoped bool
}

// Requirement is the ordered set of alternatives an endpoint accepts.
// Requirements are constructed statically next to the route declaration
// and passed explicitly to Decide; the first alternative whose role
// matches the principal wins, with no fallthrough to later alternatives
// of the same role.
type Requirement []Alternative

// ClinicFilter is the effective clinic restriction a successful access
// decision imposes on every downstream query. It is either one concrete
// clinic or the explicit all-clinics marker; only Decide (and test or
// CLI code via the constructors) produces values, so non-administrator
// code paths cannot widen their scope ad hoc.
type ClinicFilter struct {
	clinicID uuid.UUID
	all      bool
}

// ScopeAll returns the filter that matches every clinic. Decide only
// mints this for administrators.
func ScopeAll() ClinicFilter {
	return ClinicFilter{all: true}
}

// ScopeClinic returns the filter restricted to one clinic.
func ScopeClinic(id uuid.UUID) ClinicFilter {
	return ClinicFilter{clinicID: id}
}

// All reports whether the filter spans every clinic.
func (f ClinicFilter) All() bool { return f.all }

// Clinic returns the concrete clinic and true, or false for the
// all-clinics filter.
func (f ClinicFilter) Clinic() (uuid.UUID, bool) {
	if f.all {
		return uuid.Nil, false
	}
	return f.clinicID, true
}

// Resolve pins the filter to a concrete clinic for create operations.
// Under a single-clinic filter the requested clinic (when set) must match
// it; under the all-clinics filter the request must name a clinic.
func (f ClinicFilter) Resolve(requested uuid.UUID) (uuid.UUID, error) {
	if f.all {
		if requested == uuid.Nil {
			return uuid.Nil, ErrForbidden
		}
		return requested, nil
	}
	if requested != uuid.Nil && requested != f.clinicID {
		return uuid.Nil, ErrForbidden
	}
	return f.clinicID, nil
}

// Decide evaluates an access requirement for a principal.
//
// Alternatives are tried in declaration order; the first whose role
// matches the principal is the one evaluated for scope. Administrators
// are exempt from clinic-scope matching and act network-wide. Everyone
// else must have a home clinic, and when targetClinic is known it must
// equal the home clinic.
//
// On success the returned filter is the all-clinics marker only for an
// administrator with no pinned target; otherwise it is the concrete
// clinic every subsequent query must be bound to. Decide is a pure
// function of its inputs.
func Decide(p *Principal, req Requirement, targetClinic *uuid.UUID) (ClinicFilter, error) {
	if p == nil {
		return ClinicFilter{}, ErrUnauthenticated
	}

	for _, alt := range req {
		if alt.Role != p.Role {
			continue
		}

		if p.Role == RoleAdministrator {
			if targetClinic != nil {
				return ScopeClinic(*targetClinic), nil
			}
			return ScopeAll(), nil
		}

		home, ok := p.HomeClinic()
		if alt.ClinicScoped || targetClinic != nil {
			if !ok {
				return ClinicFilter{}, ErrMissingClinicAssociation
			}
			if targetClinic != nil && *targetClinic != home {
				return ClinicFilter{}, ErrForbidden
			}
			return ScopeClinic(home), nil
		}

		// Unscoped alternative for a non-administrator still confines
		// queries to the home clinic; "all" is reserved for admins.
		if !ok {
			return ClinicFilter{}, ErrMissingClinicAssociation
		}
		return ScopeClinic(home), nil
	}

	return ClinicFilter{}, ErrForbidden
}

type scopeKey struct{}

// WithScope returns a context carrying the effective clinic filter.
func WithScope(ctx context.Context, f ClinicFilter) context.Context {
	return context.WithValue(ctx, scopeKey{}, f)
}

// ScopeFromContext retrieves the effective clinic filter put in place by
// the Require middleware. The second return is false when no access
// decision has been made for the request.
func ScopeFromContext(ctx context.Context) (ClinicFilter, bool) {
	f, ok := ctx.Value(scopeKey{}).(ClinicFilter)
	return f, ok
}

// Require returns middleware that evaluates the requirement against the
// request principal with no pinned target clinic, rejecting the request
// or storing the effective clinic filter on the context. Handlers whose
// target clinic is only known after loading the resource call Decide
// again with the concrete clinic.
func Require(req Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			p := PrincipalFromContext(ctx)

			filter, err := Decide(p, req, nil)
			if err != nil {
				return HTTPError(err)
			}

			c.SetRequest(c.Request().WithContext(WithScope(ctx, filter)))
			return next(c)
		}
	}
}

// HTTPError maps access-decision errors to echo HTTP errors.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	case errors.Is(err, ErrMissingClinicAssociation):
		return echo.NewHTTPError(http.StatusConflict, "account has no clinic association")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
