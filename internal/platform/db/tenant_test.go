package db

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func testContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractTenantIDFromJWTClaim(t *testing.T) {
	c := testContext("/")
	c.Set("jwt_tenant_id", "acme")
	c.Request().Header.Set("X-Tenant-ID", "ignored")

	if got := extractTenantID(c, "default"); got != "acme" {
		t.Errorf("extractTenantID = %q, want jwt claim to win", got)
	}
}

func TestExtractTenantIDFromHeader(t *testing.T) {
	c := testContext("/")
	c.Request().Header.Set("X-Tenant-ID", "acme")

	if got := extractTenantID(c, "default"); got != "acme" {
		t.Errorf("extractTenantID = %q, want acme", got)
	}
}

func TestExtractTenantIDFromQuery(t *testing.T) {
	c := testContext("/?tenant_id=acme")

	if got := extractTenantID(c, "default"); got != "acme" {
		t.Errorf("extractTenantID = %q, want acme", got)
	}
}

func TestExtractTenantIDDefault(t *testing.T) {
	c := testContext("/")

	if got := extractTenantID(c, "default"); got != "default" {
		t.Errorf("extractTenantID = %q, want default", got)
	}
}

func TestTenantIDPattern(t *testing.T) {
	valid := []string{"acme", "clinic_7", "A1"}
	for _, id := range valid {
		if !tenantIDPattern.MatchString(id) {
			t.Errorf("%q should be a valid tenant id", id)
		}
	}

	invalid := []string{"", "bad-tenant", "a.b", "x;DROP SCHEMA", "tenant id"}
	for _, id := range invalid {
		if tenantIDPattern.MatchString(id) {
			t.Errorf("%q should be rejected", id)
		}
	}
}

func TestTxFromContextEmpty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("TxFromContext(empty) = %v, want nil", tx)
	}
}

func TestConnFromContextEmpty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Errorf("ConnFromContext(empty) = %v, want nil", conn)
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "acme")
	if got := TenantFromContext(ctx); got != "acme" {
		t.Errorf("TenantFromContext = %q, want acme", got)
	}
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("TenantFromContext(empty) = %q, want empty", got)
	}
}

func TestWithTxNoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("WithTx without a connection should fail")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("error = %q, want no-connection message", err.Error())
	}
}

func TestTxManagerRequiresTenantConnection(t *testing.T) {
	m := NewTxManager()
	called := false
	err := m.InTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("InTx without a tenant connection should fail")
	}
	if err.Error() != "no tenant connection in context" {
		t.Errorf("error = %q, want no-tenant-connection message", err.Error())
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}
