package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("UNIFY_DATABASE_URL", "postgres://localhost/unify")
	t.Setenv("UNIFY_REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want default 8080", cfg.Port)
	}
	if cfg.NumWorkers != 4 {
		t.Errorf("num_workers = %d, want default 4", cfg.NumWorkers)
	}
	if cfg.IngestRateLimit != 0 {
		t.Errorf("ingest_rate_limit = %d, want default 0", cfg.IngestRateLimit)
	}
	if cfg.MigrationsDir != "migrations" {
		t.Errorf("migrations_dir = %q, want default migrations", cfg.MigrationsDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("UNIFY_DATABASE_URL", "postgres://localhost/unify")
	t.Setenv("UNIFY_REDIS_URL", "redis://localhost:6379")
	t.Setenv("UNIFY_PORT", "9090")
	t.Setenv("UNIFY_NUM_WORKERS", "8")
	t.Setenv("UNIFY_INGEST_RATE_LIMIT", "100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.NumWorkers != 8 {
		t.Errorf("num_workers = %d, want 8", cfg.NumWorkers)
	}
	if cfg.IngestRateLimit != 100 {
		t.Errorf("ingest_rate_limit = %d, want 100", cfg.IngestRateLimit)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unify.yaml")
	yaml := "port: \"7070\"\nnum_workers: 2\ndatabase_url: postgres://file/unify\nredis_url: redis://file:6379\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("UNIFY_CONFIG", path)
	t.Setenv("UNIFY_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q, env must win over the file", cfg.Port)
	}
	if cfg.NumWorkers != 2 {
		t.Errorf("num_workers = %d, want 2 from the file", cfg.NumWorkers)
	}
	if cfg.DatabaseURL != "postgres://file/unify" {
		t.Errorf("database_url = %q, want the file value", cfg.DatabaseURL)
	}
}

func TestLoad_RequiredFields(t *testing.T) {
	t.Setenv("UNIFY_REDIS_URL", "redis://localhost:6379")
	os.Unsetenv("UNIFY_DATABASE_URL")

	if _, err := Load(); err == nil {
		t.Error("expected an error without database_url")
	}

	t.Setenv("UNIFY_DATABASE_URL", "postgres://localhost/unify")
	t.Setenv("UNIFY_NUM_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Error("expected an error with zero num_workers")
	}
}
