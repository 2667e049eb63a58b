package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source.Mode != "direct" {
		t.Errorf("Source.Mode = %q, want direct", cfg.Source.Mode)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache.TTL = %v, want 30m", cfg.Cache.TTL)
	}
	if cfg.FanOut() != 5 {
		t.Errorf("FanOut() = %d, want 5", cfg.FanOut())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
source:
  mode: navigate
  navigate:
    identifier_target: "https://warehouse.example/%s/batches/%s"
    weight_target: "https://catalog.example/%s/items/%s"
agents:
  locations:
    identifier-source: "^https://warehouse\\.example/.*$"
    weight-source: "^https://catalog\\.example/.*$"
cache:
  ttl: 10m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
	}
	if cfg.FanOut() != 1 {
		t.Errorf("FanOut() = %d in navigate mode, want 1", cfg.FanOut())
	}
}

func TestValidateRejectsBadTemplates(t *testing.T) {
	cfg := Defaults()
	cfg.Source.Direct.WeightEndpoints = []string{"https://mirror.example/items/%s"}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected a template verb count error")
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Source.Mode = "carrier-pigeon"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected an unsupported mode error")
	}
}

func TestValidateRejectsBadLocationPattern(t *testing.T) {
	cfg := Defaults()
	cfg.Source.Mode = "navigate"
	cfg.Source.Navigate.IdentifierTarget = "https://a.example/%s/%s"
	cfg.Source.Navigate.WeightTarget = "https://b.example/%s/%s"
	cfg.Agents.Locations = map[string]string{"weight-source": "("}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected a regexp compile error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEIGHBRIDGE_LOGGER_LEVEL", "warn")
	t.Setenv("WEIGHBRIDGE_BATCH_CONCURRENCY", "3")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want warn", cfg.Logger.Level)
	}
	if cfg.FanOut() != 3 {
		t.Errorf("FanOut() = %d, want 3", cfg.FanOut())
	}
}
