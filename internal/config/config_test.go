package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("RATE_RPS", "")
	t.Setenv("RATE_BURST", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("default port: %s", cfg.Port)
	}
	if cfg.RateRPS != 0 {
		t.Fatalf("rate limiting should default off")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "portgate.yaml")
	if err := os.WriteFile(p, []byte("port: \"9000\"\nrate_rps: 25\nrate_burst: 50\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", p)
	t.Setenv("PORT", "9100")
	t.Setenv("RATE_RPS", "")
	t.Setenv("RATE_BURST", "")
	cfg := Load()
	if cfg.Port != "9100" {
		t.Fatalf("env must win over file, got %s", cfg.Port)
	}
	if cfg.RateRPS != 25 || cfg.RateBurst != 50 {
		t.Fatalf("file values lost: %+v", cfg)
	}
}
