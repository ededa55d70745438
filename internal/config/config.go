// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.pelican/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Backend: base URL and request timeout for the chat backend
//   - Sync: the delayed-refetch and link-retry intervals of the
//     synchronization core
//   - Telemetry: OTLP trace export (see internal/observability)
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackendURL indicates the backend base URL is missing or malformed.
	ErrInvalidBackendURL = errors.New("invalid backend URL")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidRefreshDelay indicates the send-refresh delay is out of range.
	ErrInvalidRefreshDelay = errors.New("invalid send refresh delay")

	// ErrInvalidRetryWait indicates the link retry wait is out of range.
	ErrInvalidRetryWait = errors.New("invalid link retry wait")

	// ErrInvalidRequestRate indicates the client-side request rate is invalid.
	ErrInvalidRequestRate = errors.New("invalid request rate")
)

const (
	// DefaultSendRefreshDelayMS is the delay before refetching messages after
	// a successful send. The backend appends assistant and system messages
	// asynchronously; an immediate refetch would race its own write.
	DefaultSendRefreshDelayMS = 1000

	// DefaultLinkRetryWaitMS is the single wait between the two
	// vector-store discovery attempts of the linking workflow. It models the
	// backend's asynchronous default-store provisioning.
	DefaultLinkRetryWaitMS = 3000

	// DefaultRequestTimeoutMS bounds every backend request.
	DefaultRequestTimeoutMS = 30000

	// MaxDelayMS is the upper bound for all configured intervals.
	MaxDelayMS = 600000
)

// TelemetryConfig holds OTLP trace export configuration.
// See internal/observability for the exporter setup.
type TelemetryConfig struct {
	// Enabled turns trace export on. Default: false
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment"`
	// ServiceName is the service name attached to exported spans
	ServiceName string `mapstructure:"service_name"`
}

// Config stores application configuration.
type Config struct {
	// Backend connection
	BackendURL       string `mapstructure:"backend_url"`
	RequestTimeoutMS int    `mapstructure:"request_timeout_ms"`

	// Client-side request pacing (token bucket)
	RequestRate  float64 `mapstructure:"request_rate"`
	RequestBurst int     `mapstructure:"request_burst"`

	// Synchronization core intervals. Both encode an assumption about
	// backend processing latency, so they are configurable rather than
	// hard-coded.
	SendRefreshDelayMS int `mapstructure:"send_refresh_delay_ms"`
	LinkRetryWaitMS    int `mapstructure:"link_retry_wait_ms"`

	// CredentialsPath is where the identity accessor looks for stored
	// credentials. Empty means ~/.pelican/credentials.json.
	CredentialsPath string `mapstructure:"credentials_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Telemetry (see observability package)
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.pelican/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pelican")

	// Ensure directory exists (0750 keeps credentials private)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = filepath.Join(configDir, "credentials.json")
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration populated with default values only.
// Used by tests that need a valid config without touching the filesystem.
func Default() *Config {
	return &Config{
		BackendURL:         "http://localhost:8000",
		RequestTimeoutMS:   DefaultRequestTimeoutMS,
		RequestRate:        10,
		RequestBurst:       5,
		SendRefreshDelayMS: DefaultSendRefreshDelayMS,
		LinkRetryWaitMS:    DefaultLinkRetryWaitMS,
		LogLevel:           "info",
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			Environment: "dev",
			ServiceName: "pelican",
		},
	}
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("request_timeout_ms", DefaultRequestTimeoutMS)

	v.SetDefault("request_rate", 10)
	v.SetDefault("request_burst", 5)

	v.SetDefault("send_refresh_delay_ms", DefaultSendRefreshDelayMS)
	v.SetDefault("link_retry_wait_ms", DefaultLinkRetryWaitMS)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.environment", "dev")
	v.SetDefault("telemetry.service_name", "pelican")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("backend_url", "PELICAN_BACKEND_URL")
	mustBind("credentials_path", "PELICAN_CREDENTIALS")
	mustBind("log_level", "PELICAN_LOG_LEVEL")
	mustBind("send_refresh_delay_ms", "PELICAN_SEND_REFRESH_DELAY_MS")
	mustBind("link_retry_wait_ms", "PELICAN_LINK_RETRY_WAIT_MS")
	mustBind("telemetry.enabled", "PELICAN_TELEMETRY")
	mustBind("telemetry.endpoint", "PELICAN_OTLP_ENDPOINT")
}

// Validate checks the configuration for invalid values.
// Returns the first sentinel error encountered, wrapped with detail.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBackendURL, c.BackendURL)
	}

	if c.RequestTimeoutMS <= 0 || c.RequestTimeoutMS > MaxDelayMS {
		return fmt.Errorf("%w: %d ms", ErrInvalidTimeout, c.RequestTimeoutMS)
	}

	if c.SendRefreshDelayMS < 0 || c.SendRefreshDelayMS > MaxDelayMS {
		return fmt.Errorf("%w: %d ms", ErrInvalidRefreshDelay, c.SendRefreshDelayMS)
	}

	if c.LinkRetryWaitMS < 0 || c.LinkRetryWaitMS > MaxDelayMS {
		return fmt.Errorf("%w: %d ms", ErrInvalidRetryWait, c.LinkRetryWaitMS)
	}

	if c.RequestRate <= 0 || c.RequestBurst <= 0 {
		return fmt.Errorf("%w: rate=%v burst=%d", ErrInvalidRequestRate,
			c.RequestRate, c.RequestBurst)
	}

	return nil
}

// RequestTimeout returns the request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// SendRefreshDelay returns the delayed-refetch interval as a duration.
func (c *Config) SendRefreshDelay() time.Duration {
	return time.Duration(c.SendRefreshDelayMS) * time.Millisecond
}

// LinkRetryWait returns the linking workflow retry wait as a duration.
func (c *Config) LinkRetryWait() time.Duration {
	return time.Duration(c.LinkRetryWaitMS) * time.Millisecond
}
