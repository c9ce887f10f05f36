package config

import (
	"strings"
	"testing"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("Load without DATABASE_URL = %v, want error naming it", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic_test")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want default 8000", cfg.Port)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool = (%d, %d), want defaults (20, 5)", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.DefaultTenant != "default" {
		t.Errorf("DefaultTenant = %q, want default", cfg.DefaultTenant)
	}
	if !cfg.IsDev() {
		t.Error("ENV=development should report IsDev")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic_test")
	t.Setenv("PORT", "9001")
	t.Setenv("DEFAULT_TENANT", "clinicnet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Port != "9001" {
		t.Errorf("Port = %q, want 9001", cfg.Port)
	}
	if cfg.DefaultTenant != "clinicnet" {
		t.Errorf("DefaultTenant = %q, want clinicnet", cfg.DefaultTenant)
	}
}

func TestValidateDevSkipsAuthCheck(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(dev) = %v, want nil", err)
	}
}

func TestValidateProductionNeedsAuth(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate(production, no auth) = nil, want error")
	}

	cfg.AuthIssuer = "https://auth.example.com/realms/clinic"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(production, issuer set) = %v, want nil", err)
	}
}

func TestValidateProductionRejectsDevSecret(t *testing.T) {
	cfg := &Config{Env: "production", AuthIssuer: "https://auth.example.com", DevJWTSecret: "hunter2"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DEV_JWT_SECRET") {
		t.Errorf("Validate = %v, want error naming DEV_JWT_SECRET", err)
	}
}
