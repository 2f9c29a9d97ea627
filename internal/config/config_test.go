package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.ProxiesPath != "proxies.txt" || cfg.RotateInterval != 300*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProbeTargetHost != "httpbin.org" || cfg.ProbeTargetPort != 80 {
		t.Errorf("unexpected probe defaults: %+v", cfg)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"--port", "9090", "--proxies-path", "other.txt", "--rotate-interval", "60"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 || cfg.ProxiesPath != "other.txt" || cfg.RotateInterval != 60*time.Second {
		t.Errorf("flags did not override: %+v", cfg)
	}
}

func TestLoadTomlProvidesDefaultsBeneathFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.toml")
	toml := "port = 7000\nproxies_path = \"from-toml.txt\"\n\n[probe]\ntarget_host = \"example.com\"\ntarget_port = 1080\n"
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7000 || cfg.ProxiesPath != "from-toml.txt" {
		t.Errorf("toml defaults not applied: %+v", cfg)
	}
	if cfg.ProbeTargetHost != "example.com" || cfg.ProbeTargetPort != 1080 {
		t.Errorf("toml probe defaults not applied: %+v", cfg)
	}

	cfg2, err := Load([]string{"--config", path, "--port", "9999"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg2.Port != 9999 {
		t.Errorf("flag did not override toml default: %+v", cfg2)
	}
}

func TestLoadEnvOverlayBeatsTomlButNotFlags(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PROBE_TARGET_HOST", "env.example")

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.toml")
	toml := "log_level = \"warn\"\n\n[probe]\ntarget_host = \"toml.example\"\n"
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env did not override toml log level: %+v", cfg)
	}
	if cfg.ProbeTargetHost != "env.example" {
		t.Errorf("env did not override toml probe host: %+v", cfg)
	}

	cfg2, err := Load([]string{"--config", path, "--log-level", "error"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg2.LogLevel != "error" {
		t.Errorf("flag did not override env log level: %+v", cfg2)
	}
}

func TestSlogLevelFallback(t *testing.T) {
	cfg := Config{LogLevel: "nonsense"}
	if got := cfg.SlogLevel(); got.String() != "INFO" {
		t.Errorf("SlogLevel() = %v, want INFO fallback", got)
	}
}
