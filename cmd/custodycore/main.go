package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodycore/internal/cli"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "custodycore",
		Short:   "Equipment custody and location tracking service",
		Version: version,
		Long: `custodycore tracks IT equipment between the stock pool and site
locations, keeps a per-serial audit trail and issues custody documents.`,
		SilenceUsage: true,
	}
	cli.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.DeliverCmd())
	rootCmd.AddCommand(cli.HistoryCmd())
	rootCmd.AddCommand(cli.ListsCmd())
	rootCmd.AddCommand(cli.ReportCmd())
	rootCmd.AddCommand(cli.OutboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
