package cmd

import (
	"context"
	"fmt"

	"github.com/pelican0/pelican/internal/api"
	"github.com/pelican0/pelican/internal/chatsync"
	"github.com/pelican0/pelican/internal/config"
	"github.com/pelican0/pelican/internal/identity"
	"github.com/pelican0/pelican/internal/log"
	"github.com/pelican0/pelican/internal/observability"
)

// app wires configuration, logging, transport, identity and the
// synchronization client together for a single command invocation.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	client   *chatsync.Client
	shutdown func(context.Context) error
}

// newApp builds the application and resolves identity.
// Returns an error if configuration is invalid or the identity accessor
// fails; a logged-out state is not an error here.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	shutdown := func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		shutdown, err = observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Telemetry.Endpoint,
			Environment: cfg.Telemetry.Environment,
			ServiceName: cfg.Telemetry.ServiceName,
		}, logger.With("component", "observability"))
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
	}

	backend, err := api.New(cfg.BackendURL, api.Options{
		Timeout: cfg.RequestTimeout(),
		Rate:    cfg.RequestRate,
		Burst:   cfg.RequestBurst,
	}, logger.With("component", "api"))
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	resolver := identity.NewFileResolver(cfg.CredentialsPath, logger.With("component", "identity"))

	client := chatsync.New(backend, resolver, chatsync.Config{
		SendRefreshDelay: cfg.SendRefreshDelay(),
		LinkRetryWait:    cfg.LinkRetryWait(),
	}, logger.With("component", "chatsync"))

	if err := client.Init(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("initializing chat client: %w", err)
	}

	return &app{cfg: cfg, logger: logger, client: client, shutdown: shutdown}, nil
}

// close releases the client and flushes telemetry.
func (a *app) close(ctx context.Context) {
	a.client.Close()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// requireLogin fails fast with a readable message when no identity is
// present.
func (a *app) requireLogin() error {
	if !a.client.State().IsLoggedIn {
		return fmt.Errorf("not logged in: place credentials at %s", a.cfg.CredentialsPath)
	}
	return nil
}
