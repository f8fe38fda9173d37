package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/internal/errors"
	"github.com/vango-dev/appstate/pkg/api"
)

func appsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage your registered apps",
		Long: `List, register and delete the apps registered to your account.

Examples:
  appstate apps list
  appstate apps create my-bot --description "Posts release notes"
  appstate apps delete 42`,
	}

	cmd.AddCommand(
		appsListCmd(flags),
		appsCreateCmd(flags),
		appsDeleteCmd(flags),
	)

	return cmd
}

func appsListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			if err := a.stores.RefreshApps(ctx); err != nil {
				return err
			}

			apps := a.stores.Apps.Items()
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(apps)
			}

			if len(apps) == 0 {
				info("No apps registered")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, app := range apps {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", app.ID, app.Name, app.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

func appsCreateCmd(flags *globalFlags) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}

			app, err := a.stores.RegisterApp(ctx, api.AppInput{Name: args[0], Description: description})
			if err != nil {
				return err
			}

			success("Registered %s (id %d)", app.Name, app.ID)
			if app.Token != "" {
				fmt.Fprintln(cmd.OutOrStdout(), app.Token)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "App description")

	return cmd
}

func appsDeleteCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return errors.New("E301").
					WithDetail(fmt.Sprintf("app id must be a positive integer, got %q", args[0]))
			}

			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			if err := a.stores.RefreshApps(ctx); err != nil {
				return err
			}

			target, ok := findApp(a.stores.Apps.Items(), id)
			if !ok {
				return errors.New("E301").
					WithDetail(fmt.Sprintf("no app with id %d", id)).
					WithSuggestion("run 'appstate apps list' to see your apps")
			}

			if err := a.stores.DeleteApp(ctx, target); err != nil {
				return err
			}
			success("Deleted %s", target.Name)
			if n := a.stores.Apps.Len(); n > 0 {
				info("%d apps remaining", n)
			} else {
				warn("No apps remaining")
			}
			return nil
		},
	}

	return cmd
}

func findApp(apps []api.App, id int64) (api.App, bool) {
	for _, app := range apps {
		if api.AppKey(app) == id {
			return app, true
		}
	}
	return api.App{}, false
}
