package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/internal/config"
	"github.com/vango-dev/appstate/internal/metrics"
	"github.com/vango-dev/appstate/pkg/api"
	"github.com/vango-dev/appstate/pkg/stores"
)

// globalFlags are the persistent flags shared by every command. Empty
// values leave the configuration untouched.
type globalFlags struct {
	configDir     string
	portal        string
	sessionCookie string
	logLevel      string
	logFormat     string
	singleFlight  bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configDir, "config-dir", "C", "", "Directory containing appstate.json (default: search upwards from cwd)")
	pf.StringVar(&f.portal, "portal", "", "Portal base URL (default from appstate.json)")
	pf.StringVar(&f.sessionCookie, "session-cookie", "", "Portal session cookie value (default from appstate.json or APPSTATE_SESSION_COOKIE)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	pf.BoolVar(&f.singleFlight, "single-flight", false, "Coalesce concurrent user loads")
}

// loadConfig resolves defaults, appstate.json, environment and flags.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configDir != "" {
		cfg, err = config.Load(f.configDir)
		if err == nil {
			err = cfg.ApplyEnv(os.LookupEnv)
		}
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if f.portal != "" {
		cfg.Portal.BaseURL = f.portal
	}
	if f.sessionCookie != "" {
		cfg.Portal.SessionCookie = f.sessionCookie
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.singleFlight {
		cfg.Loader.SingleFlight = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app is the bootstrapped process state shared by a command run.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	client   *api.Client
	stores   *stores.Stores
}

// bootstrap builds the logger, metrics, portal client and stores. Stores
// are constructed exactly once per process here.
func bootstrap(ctx context.Context, f *globalFlags, lazy bool) (*app, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))

	client, err := api.New(cfg.Portal.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithSessionCookie(cfg.Portal.SessionCookieName, cfg.Portal.SessionCookie),
		api.WithLogger(logger),
		api.WithObserver(m),
	)
	if err != nil {
		return nil, err
	}

	st := stores.New(ctx, stores.Deps{
		Client:       client,
		Logger:       logger,
		Observer:     m,
		SingleFlight: cfg.Loader.SingleFlight,
		UserMaxAge:   cfg.UserMaxAge(),
		Lazy:         lazy,
	})

	logger.Debug("appstate: bootstrapped",
		"portal", client.BaseURL(),
		"session", cfg.Portal.SessionCookie != "",
		"singleFlight", cfg.Loader.SingleFlight,
		"userMaxAge", cfg.UserMaxAge(),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		client:   client,
		stores:   st,
	}, nil
}

// newLogger builds the slog handler described by the configuration.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
