// Command leakdiag serves the revenue leak diagnostic and scores stores from
// the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := newServeCmd()
	rootCmd := &cobra.Command{
		Use:   "leakdiag",
		Short: "Revenue leak diagnostic for e-commerce stores",
		Long: `leakdiag scores a store's last 30 days of traffic, conversion, order value
and cart abandonment, explains where revenue is leaking and projects the
upside of fixing it. With no subcommand it runs the HTTP service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	rootCmd.AddCommand(serveCmd, newScoreCmd())
	return rootCmd
}
