package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/marketpulse/newsdesk-cli/internal/summary"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate the daily ticker-mention summary",
	Long:  "Ranks tickers by confirmed mentions for a UTC day and reports per-ticker source diversity. Re-running for the same date yields identical output.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dateStr, _ := cmd.Flags().GetString("date")
		outDir, _ := cmd.Flags().GetString("out")

		date := time.Now().UTC()
		if dateStr != "" {
			var err error
			date, err = time.Parse("2006-01-02", dateStr)
			if err != nil {
				return eris.Wrapf(err, "parse date %q", dateStr)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		s, err := summary.New(st).Generate(ctx, date)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal summary")
		}

		if outDir == "" {
			fmt.Println(string(out))
			return nil
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}
		path := filepath.Join(outDir, "summary_"+s.Date+".json")
		if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
			return eris.Wrap(err, "write summary file")
		}
		fmt.Printf("Summary written to %s\n", path)
		return nil
	},
}

func init() {
	summaryCmd.Flags().String("date", "", "UTC date to summarize (YYYY-MM-DD, default today)")
	summaryCmd.Flags().String("out", "", "directory to write summary_<date>.json instead of stdout")

	rootCmd.AddCommand(summaryCmd)
}
