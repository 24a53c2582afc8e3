package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STREAM_SERVER_URL", "STATUS_POLL_INTERVAL", "CHAT_OFFLINE_GRACE", "STREAM_DURATION_TICK", "DB_DSN", "STATE_BACKEND", "STATE_PROFILE", "HTTP_ADDR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.ChatOfflineGrace != 5*time.Minute {
		t.Errorf("ChatOfflineGrace = %v", cfg.ChatOfflineGrace)
	}
	if cfg.StoreBackend != "file" || cfg.Profile != "default" || cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STREAM_SERVER_URL", "https://live.example.com/")
	t.Setenv("STATUS_POLL_INTERVAL", "7s")
	t.Setenv("CHAT_OFFLINE_GRACE", "10s")
	t.Setenv("DB_DSN", "postgres://u:p@localhost/db")
	t.Setenv("STATE_BACKEND", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "https://live.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PollInterval != 7*time.Second || cfg.ChatOfflineGrace != 10*time.Second {
		t.Errorf("durations = %v / %v", cfg.PollInterval, cfg.ChatOfflineGrace)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("DB_DSN should imply postgres backend, got %q", cfg.StoreBackend)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("STATUS_POLL_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	base := Config{ServerURL: "http://localhost:8080", StoreBackend: "file", PollInterval: time.Second, DurationTick: time.Second}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := base
	bad.ServerURL = "localhost:8080"
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for URL without scheme")
	}

	bad = base
	bad.StoreBackend = "postgres"
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for postgres without DSN")
	}

	bad = base
	bad.PollInterval = 0
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for zero poll interval")
	}
}

func TestLoadSampleRatio(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.OTLPSampleRatio != 0.25 {
		t.Errorf("OTLPSampleRatio = %v", cfg.OTLPSampleRatio)
	}

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "most")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric ratio")
	}
}
