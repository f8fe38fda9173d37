package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/pkg/stores"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		withApps bool
		withUser bool
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream store snapshots as JSON lines",
		Long: `Stream a JSON snapshot of every store each time one changes.

The session is loaded immediately. Each line holds the session,
the cached user, the error list and the app list.

Examples:
  appstate watch
  appstate watch --apps --user
  appstate watch --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, flags, withApps, withUser, once)
		},
	}

	cmd.Flags().BoolVar(&withApps, "apps", false, "Load the app list on start")
	cmd.Flags().BoolVar(&withUser, "user", false, "Load the user profile on start")
	cmd.Flags().BoolVar(&once, "once", false, "Print a single snapshot once loading settles, then exit")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, flags *globalFlags, withApps, withUser, once bool) error {
	a, err := bootstrap(ctx, flags, false)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	emit := func(snap stores.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(snap); err != nil {
			a.logger.Error("appstate: write snapshot", "error", err)
		}
	}

	if !once {
		defer a.stores.Watch(emit)()
	}

	if withUser {
		if _, err := a.stores.User.Current(ctx); err != nil {
			a.logger.Warn("appstate: load user", "error", err)
		}
	}
	if withApps {
		// Failures land in the error list and show up in the stream.
		_ = a.stores.RefreshApps(ctx)
	}

	if once {
		if err := a.stores.Session.Wait(ctx); err != nil {
			return err
		}
		emit(a.stores.Snapshot())
		return nil
	}

	<-ctx.Done()
	return nil
}
