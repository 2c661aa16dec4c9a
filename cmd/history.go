// cmd/history.go
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/varkai/screenpilot/internal/observability"
	"github.com/varkai/screenpilot/internal/store"
	"github.com/varkai/screenpilot/pkg/types"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	var historyDSN string

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			dsn := loadedConfig.History.DSN
			if cmd.Flags().Changed("history-dsn") {
				dsn = historyDSN
			}
			if dsn == "" {
				return types.NewError(types.CodeConfiguration,
					"no history DSN configured; set history.dsn or pass --history-dsn")
			}

			sink, err := store.Connect(ctx, dsn, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			runs, err := sink.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WORKFLOW\tSTARTED\tDURATION\tSTEPS\tOK")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
					run.WorkflowID,
					run.StartedAt.Format(time.RFC3339),
					run.Duration.Round(time.Millisecond),
					run.StepCount,
					run.Succeeded)
			}
			return w.Flush()
		},
	}

	historyCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyDSN, "history-dsn", "", "PostgreSQL DSN for the run-history database")
	return historyCmd
}
