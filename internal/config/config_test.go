package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"derush/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")
	cfg, path, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.Silence.NoiseFloorDb != -45.0 {
		t.Fatalf("default noise floor = %v", cfg.Silence.NoiseFloorDb)
	}
	if cfg.HTTP.ChunkConcurrency != 5 {
		t.Fatalf("default chunk concurrency = %d", cfg.HTTP.ChunkConcurrency)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[silence]",
		"noise_floor_db = -38.5",
		"min_silence_ms = 250",
		"",
		"[http]",
		"preferred_bandwidth = 1500000",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Silence.NoiseFloorDb != -38.5 {
		t.Fatalf("noise floor = %v", cfg.Silence.NoiseFloorDb)
	}
	if cfg.Silence.MinSilenceMs != 250 {
		t.Fatalf("min silence = %d", cfg.Silence.MinSilenceMs)
	}
	if cfg.HTTP.PreferredBandwidth != 1500000 {
		t.Fatalf("preferred bandwidth = %d", cfg.HTTP.PreferredBandwidth)
	}
	// Untouched sections keep defaults.
	if cfg.Workflow.MaxActiveItems != 2 {
		t.Fatalf("max active items = %d", cfg.Workflow.MaxActiveItems)
	}
}

func TestValidateRejectsPositiveNoiseFloor(t *testing.T) {
	cfg := config.Default()
	cfg.Silence.NoiseFloorDb = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-negative noise floor")
	}
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.ChunkConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero chunk concurrency")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}
