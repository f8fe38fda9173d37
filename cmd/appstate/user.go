package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/pkg/loader"
)

func userCmd(flags *globalFlags) *cobra.Command {
	var (
		force   bool
		session bool
	)

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Print the current user",
		Long: `Print the current user profile from the portal as JSON.

With --session the authenticated session is printed instead,
including the derived authenticated and isVerified flags.

Examples:
  appstate user
  appstate user --force
  appstate user --session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if session {
				return enc.Encode(a.stores.Session.Reload(ctx))
			}

			u, err := a.stores.User.Load(ctx, loader.Options{Force: force})
			if err != nil {
				return err
			}
			return enc.Encode(u)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Bypass the cache and fetch again")
	cmd.Flags().BoolVar(&session, "session", false, "Print the authenticated session instead of the profile")

	return cmd
}
