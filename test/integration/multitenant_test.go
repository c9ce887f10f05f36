package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/therapynet/clinic-server/internal/domain/client"
	"github.com/therapynet/clinic-server/internal/platform/auth"
)

// Tenant schemas are fully isolated: the same queries against another
// tenant's schema see none of the first tenant's rows.
func TestTenantSchemaIsolation(t *testing.T) {
	ctx := context.Background()
	tenantA := uniqueTenantID("iso_a")
	tenantB := uniqueTenantID("iso_b")
	createTenant(t, ctx, tenantA)
	createTenant(t, ctx, tenantB)

	svc := newServices()
	cln := createTestClinic(t, ctx, tenantA, svc)
	cl := createTestClient(t, ctx, tenantA, svc, cln.ID)
	scope := auth.ScopeClinic(cln.ID)

	err := withTenantConn(ctx, tenantB, func(ctx context.Context) error {
		_, err := svc.clients.Get(ctx, cl.ID, scope)
		return err
	})
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("cross-tenant Get = %v, want ErrNotFound", err)
	}

	err = withTenantConn(ctx, tenantB, func(ctx context.Context) error {
		items, total, err := svc.clients.List(ctx, auth.ScopeAll(), "", 20, 0)
		if err != nil {
			return err
		}
		if total != 0 || len(items) != 0 {
			t.Errorf("tenant B sees %d clients (total %d), want 0", len(items), total)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("cross-tenant List: %v", err)
	}
}

// Within one tenant schema, clinic scoping hides rows of other clinics
// and makes them read as nonexistent.
func TestClinicScopingWithinTenant(t *testing.T) {
	ctx := context.Background()
	tenantID := uniqueTenantID("scoping")
	createTenant(t, ctx, tenantID)

	svc := newServices()
	clinicA := createTestClinic(t, ctx, tenantID, svc)
	clinicB := createTestClinic(t, ctx, tenantID, svc)
	cl := createTestClient(t, ctx, tenantID, svc, clinicA.ID)

	err := withTenantConn(ctx, tenantID, func(ctx context.Context) error {
		_, err := svc.clients.Get(ctx, cl.ID, auth.ScopeClinic(clinicB.ID))
		if !errors.Is(err, client.ErrNotFound) {
			t.Errorf("foreign-clinic Get = %v, want ErrNotFound", err)
		}

		if _, err := svc.clients.Get(ctx, cl.ID, auth.ScopeClinic(clinicA.ID)); err != nil {
			t.Errorf("home-clinic Get = %v, want nil", err)
		}

		if _, err := svc.clients.Get(ctx, cl.ID, auth.ScopeAll()); err != nil {
			t.Errorf("all-clinics Get = %v, want nil", err)
		}

		_, err = svc.clients.Get(ctx, uuid.New(), auth.ScopeAll())
		if !errors.Is(err, client.ErrNotFound) {
			t.Errorf("nonexistent Get = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scoping checks: %v", err)
	}
}
