package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMigrationsSortedByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "010_sessions.sql", "CREATE TABLE c (id INT);")
	writeMigration(t, dir, "001_core.sql", "CREATE TABLE a (id INT);")
	writeMigration(t, dir, "002_indexes.sql", "CREATE INDEX b ON a (id);")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	wantNames := []string{"001_core.sql", "002_indexes.sql", "010_sessions.sql"}
	for i, mig := range migrations {
		if mig.Version != wantVersions[i] {
			t.Errorf("migration %d: version = %d, want %d", i, mig.Version, wantVersions[i])
		}
		if mig.Name != wantNames[i] {
			t.Errorf("migration %d: name = %q, want %q", i, mig.Name, wantNames[i])
		}
	}
	if migrations[0].SQL != "CREATE TABLE a (id INT);" {
		t.Errorf("unexpected SQL for first migration: %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsSkipsNonMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_core.sql", "SELECT 1;")
	writeMigration(t, dir, "README.md", "notes")
	writeMigration(t, dir, "notes.sql", "no version prefix")
	writeMigration(t, dir, "abc_def.sql", "non-numeric prefix")
	if err := os.Mkdir(filepath.Join(dir, "002_dir.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("name = %q, want 001_core.sql", migrations[0].Name)
	}
}

func TestLoadMigrationsMissingDirectory(t *testing.T) {
	m := NewMigrator(nil, filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
