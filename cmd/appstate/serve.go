package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/internal/inspect"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live inspector",
		Long: `Serve a read-only view of the stores over HTTP.

Routes:
  GET /state    current snapshot as JSON
  GET /ws       WebSocket stream of snapshots
  GET /metrics  Prometheus metrics
  GET /healthz  liveness probe

Examples:
  appstate serve
  appstate serve --listen=:7070`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.Inspect.Listen = listen
			}

			if err := a.stores.RefreshApps(ctx); err != nil {
				warn("%s", err)
			}

			srv := inspect.New(a.stores,
				inspect.WithLogger(a.logger),
				inspect.WithGatherer(a.registry),
			)

			printBanner()
			info("Portal:    %s", a.client.BaseURL())
			info("Inspector: http://%s", a.cfg.Inspect.Listen)
			return srv.ListenAndServe(ctx, a.cfg.Inspect.Listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on (default from appstate.json)")

	return cmd
}
