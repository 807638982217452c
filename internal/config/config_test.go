package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Sweep.Interval != 3*time.Minute {
		t.Fatalf("expected 3m interval, got %s", cfg.Sweep.Interval)
	}
	if cfg.Sweep.MisfireGrace != 30*time.Second {
		t.Fatalf("expected 30s grace, got %s", cfg.Sweep.MisfireGrace)
	}
	if cfg.Sweep.DisplayZone != "Europe/Warsaw" {
		t.Fatalf("unexpected display zone %s", cfg.Sweep.DisplayZone)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: 8080
sweep:
  interval: 1m
  display_zone: Europe/Berlin
mail:
  default_sender: parking@example.com
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAIL_DEFAULT_SENDER", "alerts@example.com")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Sweep.Interval != time.Minute {
		t.Fatalf("expected 1m interval, got %s", cfg.Sweep.Interval)
	}
	if cfg.Sweep.MisfireGrace != 30*time.Second {
		t.Fatalf("expected default grace to survive partial file, got %s", cfg.Sweep.MisfireGrace)
	}
	if cfg.Mail.DefaultSender != "alerts@example.com" {
		t.Fatalf("expected env sender override, got %s", cfg.Mail.DefaultSender)
	}
	if cfg.Database.Port != 6543 {
		t.Fatalf("expected env db port, got %d", cfg.Database.Port)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	bad := Default()
	bad.Sweep.Interval = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected zero interval to error")
	}

	bad = Default()
	bad.Sweep.DisplayZone = "Nowhere/Land"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unknown zone to error")
	}
}
