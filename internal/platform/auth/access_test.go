package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var allRolesScoped = Requirement{
	{Role: RoleAdministrator},
	{Role: RoleClinicAdmin, ClinicScoped: true},
	{Role: RoleTherapist, ClinicScoped: true},
}

func adminPrincipal() *Principal {
	return &Principal{UserID: "admin-1", Role: RoleAdministrator}
}

func clinicAdminPrincipal(clinic uuid.UUID) *Principal {
	return &Principal{UserID: "ca-1", Role: RoleClinicAdmin, HomeClinicID: &clinic}
}

func therapistPrincipal(clinic uuid.UUID) *Principal {
	tid := uuid.New()
	return &Principal{UserID: "th-1", Role: RoleTherapist, HomeClinicID: &clinic, TherapistID: &tid}
}

func TestDecideNoPrincipal(t *testing.T) {
	_, err := Decide(nil, allRolesScoped, nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Decide(nil principal) = %v, want ErrUnauthenticated", err)
	}
}

func TestDecideRoleNotListed(t *testing.T) {
	clinic := uuid.New()
	adminOnly := Requirement{{Role: RoleAdministrator}}

	_, err := Decide(therapistPrincipal(clinic), adminOnly, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Decide(therapist, admin-only) = %v, want ErrForbidden", err)
	}
}

func TestDecideAdminUnpinnedGetsAllClinics(t *testing.T) {
	f, err := Decide(adminPrincipal(), allRolesScoped, nil)
	if err != nil {
		t.Fatalf("Decide(admin) = %v, want nil", err)
	}
	if !f.All() {
		t.Error("admin with no target should receive the all-clinics filter")
	}
}

func TestDecideAdminPinnedToTarget(t *testing.T) {
	target := uuid.New()
	f, err := Decide(adminPrincipal(), allRolesScoped, &target)
	if err != nil {
		t.Fatalf("Decide(admin, target) = %v, want nil", err)
	}
	got, ok := f.Clinic()
	if !ok || got != target {
		t.Errorf("filter clinic = (%v, %v), want (%v, true)", got, ok, target)
	}
}

func TestDecideClinicAdminConfinedToHome(t *testing.T) {
	home := uuid.New()
	f, err := Decide(clinicAdminPrincipal(home), allRolesScoped, nil)
	if err != nil {
		t.Fatalf("Decide(clinic admin) = %v, want nil", err)
	}
	if f.All() {
		t.Error("clinic admin must never receive the all-clinics filter")
	}
	got, _ := f.Clinic()
	if got != home {
		t.Errorf("filter clinic = %v, want home clinic %v", got, home)
	}
}

func TestDecideClinicAdminForeignTarget(t *testing.T) {
	home := uuid.New()
	foreign := uuid.New()

	_, err := Decide(clinicAdminPrincipal(home), allRolesScoped, &foreign)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Decide(clinic admin, foreign clinic) = %v, want ErrForbidden", err)
	}
}

func TestDecideTherapistOwnClinicTarget(t *testing.T) {
	home := uuid.New()
	f, err := Decide(therapistPrincipal(home), allRolesScoped, &home)
	if err != nil {
		t.Fatalf("Decide(therapist, own clinic) = %v, want nil", err)
	}
	got, _ := f.Clinic()
	if got != home {
		t.Errorf("filter clinic = %v, want %v", got, home)
	}
}

func TestDecideMissingClinicAssociation(t *testing.T) {
	p := &Principal{UserID: "ca-2", Role: RoleClinicAdmin}

	_, err := Decide(p, allRolesScoped, nil)
	if !errors.Is(err, ErrMissingClinicAssociation) {
		t.Errorf("Decide(clinic admin without home) = %v, want ErrMissingClinicAssociation", err)
	}
}

func TestDecideUnscopedAlternativeStillConfined(t *testing.T) {
	home := uuid.New()
	req := Requirement{{Role: RoleTherapist}}

	f, err := Decide(therapistPrincipal(home), req, nil)
	if err != nil {
		t.Fatalf("Decide(therapist, unscoped) = %v, want nil", err)
	}
	if f.All() {
		t.Error("non-administrator must never receive the all-clinics filter")
	}
}

func TestDecideFirstMatchingAlternativeWins(t *testing.T) {
	home := uuid.New()
	req := Requirement{
		{Role: RoleTherapist, ClinicScoped: true},
		{Role: RoleTherapist},
	}
	foreign := uuid.New()

	// The scoped alternative matches first; the later unscoped one is
	// never consulted.
	_, err := Decide(therapistPrincipal(home), req, &foreign)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Decide = %v, want ErrForbidden from the first matching alternative", err)
	}
}

func TestResolveAllClinicsRequiresExplicit(t *testing.T) {
	if _, err := ScopeAll().Resolve(uuid.Nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("Resolve(nil) under all-clinics = %v, want ErrForbidden", err)
	}

	want := uuid.New()
	got, err := ScopeAll().Resolve(want)
	if err != nil || got != want {
		t.Errorf("Resolve(%v) = (%v, %v), want (%v, nil)", want, got, err, want)
	}
}

func TestResolveSingleClinic(t *testing.T) {
	home := uuid.New()
	f := ScopeClinic(home)

	got, err := f.Resolve(uuid.Nil)
	if err != nil || got != home {
		t.Errorf("Resolve(nil) = (%v, %v), want (%v, nil)", got, err, home)
	}

	if _, err := f.Resolve(uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("Resolve(foreign) = %v, want ErrForbidden", err)
	}

	got, err = f.Resolve(home)
	if err != nil || got != home {
		t.Errorf("Resolve(home) = (%v, %v), want (%v, nil)", got, err, home)
	}
}

func TestRequireMiddlewareStoresScope(t *testing.T) {
	e := echo.New()
	home := uuid.New()

	var got ClinicFilter
	var ok bool
	handler := Require(allRolesScoped)(func(c echo.Context) error {
		got, ok = ScopeFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), therapistPrincipal(home)))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler returned %v", err)
	}
	if !ok {
		t.Fatal("scope missing from request context")
	}
	if clinicID, _ := got.Clinic(); clinicID != home {
		t.Errorf("scope clinic = %v, want %v", clinicID, home)
	}
}

func TestRequireMiddlewareRejectsAnonymous(t *testing.T) {
	e := echo.New()
	handler := Require(allRolesScoped)(func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("handler error = %v, want 401", err)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrMissingClinicAssociation, http.StatusConflict},
		{ErrForbidden, http.StatusForbidden},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPError(tc.err); got.Code != tc.code {
			t.Errorf("HTTPError(%v) = %d, want %d", tc.err, got.Code, tc.code)
		}
	}
}
