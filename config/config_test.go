package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("Mode = %q, want release", cfg.Server.Mode)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.RateLimit.RequestsPerWindow != 60 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %d/%v, want 60/1m", cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("MaxEntries = %d, want 1000", cfg.Cache.MaxEntries)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEBPEEL_PORT", "9090")
	t.Setenv("WEBPEEL_HEADLESS", "false")
	t.Setenv("WEBPEEL_API_KEYS", "key-a, key-b")
	t.Setenv("WEBPEEL_RATE_WINDOW", "30s")
	t.Setenv("WEBPEEL_ENV", "production")
	t.Setenv("WEBPEEL_CF_WORKER_URL", "https://worker.example.dev")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.Headless {
		t.Error("Headless override ignored")
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[1] != "key-b" {
		t.Errorf("APIKeys = %v", cfg.Auth.APIKeys)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("Window = %v, want 30s", cfg.RateLimit.Window)
	}
	if !cfg.Server.Production {
		t.Error("WEBPEEL_ENV=production should set Production")
	}
	if cfg.Edge.WorkerURL != "https://worker.example.dev" {
		t.Errorf("WorkerURL = %q", cfg.Edge.WorkerURL)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("WEBPEEL_PORT", "not-a-number")
	t.Setenv("WEBPEEL_RATE_WINDOW", "soon")

	cfg := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default on parse failure", cfg.Server.Port)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("Window = %v, want default on parse failure", cfg.RateLimit.Window)
	}
}
