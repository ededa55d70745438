package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing backend URL",
			mutate:  func(c *Config) { c.BackendURL = "" },
			wantErr: ErrInvalidBackendURL,
		},
		{
			name:    "backend URL without scheme",
			mutate:  func(c *Config) { c.BackendURL = "localhost:8000" },
			wantErr: ErrInvalidBackendURL,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.RequestTimeoutMS = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "timeout above cap",
			mutate:  func(c *Config) { c.RequestTimeoutMS = MaxDelayMS + 1 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative refresh delay",
			mutate:  func(c *Config) { c.SendRefreshDelayMS = -1 },
			wantErr: ErrInvalidRefreshDelay,
		},
		{
			name:    "retry wait above cap",
			mutate:  func(c *Config) { c.LinkRetryWaitMS = MaxDelayMS + 1 },
			wantErr: ErrInvalidRetryWait,
		},
		{
			name:    "zero request rate",
			mutate:  func(c *Config) { c.RequestRate = 0 },
			wantErr: ErrInvalidRequestRate,
		},
		{
			name:    "zero burst",
			mutate:  func(c *Config) { c.RequestBurst = 0 },
			wantErr: ErrInvalidRequestRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() error = %v, want ErrConfigNil", err)
	}
}

func TestValidate_ZeroDelaysAllowed(t *testing.T) {
	// Zero disables the waits; tests and impatient users rely on it.
	cfg := Default()
	cfg.SendRefreshDelayMS = 0
	cfg.LinkRetryWaitMS = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v for zero delays", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		RequestTimeoutMS:   1500,
		SendRefreshDelayMS: 250,
		LinkRetryWaitMS:    3000,
	}

	if got := cfg.RequestTimeout(); got != 1500*time.Millisecond {
		t.Errorf("RequestTimeout() = %v", got)
	}
	if got := cfg.SendRefreshDelay(); got != 250*time.Millisecond {
		t.Errorf("SendRefreshDelay() = %v", got)
	}
	if got := cfg.LinkRetryWait(); got != 3*time.Second {
		t.Errorf("LinkRetryWait() = %v", got)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PELICAN_BACKEND_URL", "http://example.test:9000")
	t.Setenv("PELICAN_SEND_REFRESH_DELAY_MS", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "http://example.test:9000" {
		t.Errorf("BackendURL = %q, env override ignored", cfg.BackendURL)
	}
	if cfg.SendRefreshDelayMS != 42 {
		t.Errorf("SendRefreshDelayMS = %d, env override ignored", cfg.SendRefreshDelayMS)
	}
	if cfg.CredentialsPath == "" {
		t.Error("CredentialsPath default not filled in")
	}
}
