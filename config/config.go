// Package config loads environment variables and provides a typed Config used across the viewer.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Use Validate before starting a session.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultPollInterval     = 20 * time.Second
	DefaultChatOfflineGrace = 5 * time.Minute
	DefaultDurationTick     = time.Second
	DefaultHTTPAddr         = "localhost:8090"
)

type Config struct {
	// Streaming server
	ServerURL   string
	DisplayName string

	// Session timers
	PollInterval     time.Duration
	ChatOfflineGrace time.Duration
	DurationTick     time.Duration

	// Persistence
	StoreBackend  string // file | postgres | memory
	StatePath     string
	DBDsn         string
	Profile       string
	EncryptionKey string

	// Local API / observability
	HTTPAddr        string
	OTLPEndpoint    string
	OTLPSampleRatio float64
}

// Load reads environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerURL = strings.TrimRight(os.Getenv("STREAM_SERVER_URL"), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	cfg.DisplayName = os.Getenv("CHAT_DISPLAY_NAME")

	var err error
	if cfg.PollInterval, err = durationEnv("STATUS_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.ChatOfflineGrace, err = durationEnv("CHAT_OFFLINE_GRACE", DefaultChatOfflineGrace); err != nil {
		return nil, err
	}
	if cfg.DurationTick, err = durationEnv("STREAM_DURATION_TICK", DefaultDurationTick); err != nil {
		return nil, err
	}

	cfg.DBDsn = os.Getenv("DB_DSN")
	cfg.StoreBackend = strings.ToLower(os.Getenv("STATE_BACKEND"))
	if cfg.StoreBackend == "" {
		// a configured DSN implies postgres
		if cfg.DBDsn != "" {
			cfg.StoreBackend = "postgres"
		} else {
			cfg.StoreBackend = "file"
		}
	}
	cfg.StatePath = os.Getenv("STATE_PATH")
	cfg.Profile = os.Getenv("STATE_PROFILE")
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG (ratio like 0.25): %w", err)
		}
		cfg.OTLPSampleRatio = r
	}

	return cfg, nil
}

// Validate checks fields required to run a session.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid STREAM_SERVER_URL %q: want http(s)://host[:port]", c.ServerURL)
	}
	switch c.StoreBackend {
	case "file", "memory":
	case "postgres":
		if c.DBDsn == "" {
			return fmt.Errorf("STATE_BACKEND=postgres requires DB_DSN")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.StoreBackend)
	}
	if c.PollInterval <= 0 || c.DurationTick <= 0 || c.ChatOfflineGrace < 0 {
		return fmt.Errorf("timer settings must be positive")
	}
	return nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration like 20s): %w", key, err)
	}
	return d, nil
}
