package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List processing run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		status, _ := cmd.Flags().GetString("status")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		}
		if since > 0 {
			filter.Since = time.Now().UTC().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tSTATUS\tNEW\tDUP\tFAILED\tMENTIONS")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				r.ID,
				r.StartedAt.UTC().Format(time.RFC3339),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
				r.Status,
				r.NewArticles, r.Duplicates, r.Failed, r.Mentions)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().String("status", "", "filter by run status (success, failed, partial)")
	runsCmd.Flags().Duration("since", 0, "only show runs started within this window (e.g. 24h)")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")

	rootCmd.AddCommand(runsCmd)
}
