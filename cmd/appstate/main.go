package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/appstate/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┌─┐┌─┐┌┬┐┌─┐┌┬┐┌─┐
  ├─┤├─┘├─┘└─┐ │ ├─┤ │ ├┤
  ┴ ┴┴  ┴  └─┘ ┴ ┴ ┴ ┴ └─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "appstate",
		Short: "Inspect and manage your portal session and apps",
		Long: `appstate keeps a live view of your portal account.

It tracks the signed-in session, the current user profile,
your registered apps and any errors raised along the way:

  • Stream state changes as JSON lines
  • List, register and delete apps
  • Verify or delete your account
  • Serve a live inspector over HTTP and WebSocket

Configuration is read from appstate.json, APPSTATE_* environment
variables and the flags below, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags.register(rootCmd)

	rootCmd.AddCommand(
		watchCmd(flags),
		userCmd(flags),
		appsCmd(flags),
		verifyCmd(flags),
		accountCmd(flags),
		providersCmd(flags),
		serveCmd(flags),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Fprint(os.Stderr, banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
