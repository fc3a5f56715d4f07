package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trayline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("fac-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Facility.ID != "fac-1" {
		t.Fatalf("facility id = %q", cfg.Facility.ID)
	}
	if cfg.PantryThreshold() != 15*time.Minute {
		t.Fatalf("pantry threshold = %v", cfg.PantryThreshold())
	}
	if cfg.DeliveryThreshold() != 30*time.Minute {
		t.Fatalf("delivery threshold = %v", cfg.DeliveryThreshold())
	}
}

func TestFromYAMLRejectsBadThresholds(t *testing.T) {
	_, err := config.FromYAML([]byte(`
facility:
  id: fac-1
alerts:
  pantry_threshold_minutes: 0
  delivery_threshold_minutes: 30
meals:
  slots: [morning]
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fallback invalid: %v", err)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	content := `
facility:
  id: ward-7
alerts:
  pantry_threshold_minutes: 5
  delivery_threshold_minutes: 10
meals:
  slots: [morning, evening, night]
`
	if err := os.WriteFile(filepath.Join(dir, "trayline.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Facility.ID != "ward-7" || cfg.PantryThreshold() != 5*time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
