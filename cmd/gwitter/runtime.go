package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/h0rv/gwitter/internal/auth"
	"github.com/h0rv/gwitter/internal/config"
	"github.com/h0rv/gwitter/internal/feed"
	"github.com/h0rv/gwitter/internal/gh"
	"github.com/h0rv/gwitter/internal/history"
	"github.com/h0rv/gwitter/internal/logging"
	"golang.org/x/oauth2"
)

type runtimeOptions struct {
	// stderr mirrors logs to the terminal; only for non-TUI commands.
	stderr bool
	// prompt shows a device flow code to the user.
	prompt func(*oauth2.DeviceAuthResponse)
}

// runtime is the wired object graph shared by all commands.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	factory *gh.Factory
	holder  *auth.Holder
	history *history.Store // nil when the database could not be opened
	closers []io.Closer
}

func newRuntime(cfg config.Config, opts runtimeOptions) (*runtime, error) {
	logger, logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Stderr: opts.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	rt.factory = gh.NewFactory(
		gh.WithEndpoint(cfg.Request.Endpoint),
		gh.WithRateLimit(cfg.Request.RequestsPerSecond, cfg.Request.Burst),
		gh.WithLogger(logger.With("component", "gh")),
	)

	identify := auth.IdentifierFunc(func(ctx context.Context, token string) (string, error) {
		return rt.factory.ForToken(token).Viewer(ctx)
	})
	rt.holder = auth.NewHolder(newAuthenticator(cfg, opts.prompt), identify, logger.With("component", "auth"))

	if cfg.Cache.Path != "" {
		store, err := history.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warn("repo history unavailable", "path", cfg.Cache.Path, "error", err)
		} else {
			rt.history = store
			rt.closers = append(rt.closers, store)
		}
	}

	return rt, nil
}

// newAuthenticator prefers the OAuth device flow when an app is configured
// and falls back to tokens already present on the machine.
func newAuthenticator(cfg config.Config, prompt func(*oauth2.DeviceAuthResponse)) auth.Authenticator {
	if cfg.Request.ClientID != "" {
		return auth.NewDeviceFlow(cfg.Request.ClientID, cfg.Request.ClientSecret, cfg.Request.AutoProxy, prompt)
	}
	return &auth.ProviderAuthenticator{Providers: auth.DefaultProviders()}
}

func (rt *runtime) newController(options ...feed.Option) *feed.Controller {
	base := []feed.Option{
		feed.WithQuota(rt.factory),
		feed.WithLogger(rt.logger),
	}
	if rt.history != nil {
		base = append(base, feed.WithHistory(rt.history))
	}
	factory := feed.FactoryFunc(func(token string) feed.PageFetcher {
		return rt.factory.ForToken(token)
	})
	return feed.NewController(feed.OptionsFromConfig(rt.cfg), factory, rt.holder, append(base, options...)...)
}

// Close releases the history database and the log file, newest first.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}
