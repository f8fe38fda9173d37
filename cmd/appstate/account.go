package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/internal/errors"
)

func verifyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <link>",
		Short: "Verify your account with the emailed link",
		Long: `Verify a new account with the link the portal sent by email,
then print the resulting session.

Examples:
  appstate verify "https://portal.example.com/verify?token=..."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}

			sess, err := a.stores.Verify(ctx, args[0])
			if err != nil {
				return err
			}
			success("Account verified")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		},
	}

	return cmd
}

func accountCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your portal account",
	}

	cmd.AddCommand(accountDeleteCmd(flags))

	return cmd
}

func accountDeleteCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account",
		Long: `Delete your portal account. Your apps stop working and the
session is signed out.

Examples:
  appstate account delete --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("E301").
					WithDetail("deleting an account cannot be undone").
					WithSuggestion("re-run with --yes to confirm")
			}

			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			if err := a.stores.DeleteAccount(ctx); err != nil {
				return err
			}
			success("Account deleted")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")

	return cmd
}

func providersCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the sign-in providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}

			providers, err := a.stores.Providers(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(providers)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, p := range providers {
				fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Label)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
