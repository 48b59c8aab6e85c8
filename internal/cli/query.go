package cli

import (
	"context"

	"github.com/spf13/cobra"

	"custodycore/internal/app"
	"custodycore/pkg/domain"
)

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history SERIAL",
		Short: "Print the audit trail of one serial, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Service.IndividualHistory(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, entries)
			})
		},
	}
}

// ListsCmd returns the lists command
func ListsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Print the configuration lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				lists, err := a.Service.GetLists(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, lists)
			})
		},
	}
}

// ReportCmd returns the report command
func ReportCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "report VALUE...",
		Short: "Run an advanced report over one filter type",
		Long: `Run an advanced report. --filter selects the field to match
(e.g. Location, Brand, Serial); every positional argument is one value.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Service.AdvancedReport(ctx, filter, args)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter type")
	_ = cmd.MarkFlagRequired("filter")
	return cmd
}

// OutboxCmd returns the outbox command
func OutboxCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List outbox events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				events, err := a.Service.Outbox(ctx, domain.OutboxStatus(status))
				if err != nil {
					return err
				}
				return printJSON(cmd, events)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only events in this status (pending, delivered, failed)")
	return cmd
}
