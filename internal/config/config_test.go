package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port: %s", cfg.Port)
	}
	if cfg.DefaultDepotLat != 28.6139 || cfg.DefaultDepotLng != 77.2090 {
		t.Fatalf("depot: %v,%v", cfg.DefaultDepotLat, cfg.DefaultDepotLng)
	}
	if cfg.SolverTimeBudget != 30*time.Second {
		t.Fatalf("budget: %v", cfg.SolverTimeBudget)
	}
	if cfg.MatrixConcurrency != 8 {
		t.Fatalf("concurrency: %d", cfg.MatrixConcurrency)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: \"9000\"\nmatrixConcurrency: 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Fatalf("env should win: %s", cfg.Port)
	}
	if cfg.MatrixConcurrency != 4 {
		t.Fatalf("file value lost: %d", cfg.MatrixConcurrency)
	}
}

func TestInvalidValuesClamped(t *testing.T) {
	t.Setenv("JOB_WORKERS", "-3")
	t.Setenv("MATRIX_CONCURRENCY", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JobWorkers != 1 || cfg.MatrixConcurrency != 1 {
		t.Fatalf("clamping: workers=%d concurrency=%d", cfg.JobWorkers, cfg.MatrixConcurrency)
	}
}
