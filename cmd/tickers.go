package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Manage the ticker dictionary",
}

var tickersLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load or update tickers from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(file)
		if err != nil {
			return eris.Wrap(err, "read tickers file")
		}
		var tickers []model.Ticker
		if err := yaml.Unmarshal(data, &tickers); err != nil {
			return eris.Wrap(err, "parse tickers file")
		}
		for _, t := range tickers {
			if t.Symbol == "" {
				return eris.New("every ticker needs a symbol")
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

		n, err := st.UpsertTickers(ctx, tickers)
		if err != nil {
			return err
		}
		fmt.Printf("Upserted %d tickers.\n", n)
		return nil
	},
}

var tickersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored ticker dictionary",
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

		tickers, err := st.ListTickers(ctx)
		if err != nil {
			return err
		}
		if len(tickers) == 0 {
			fmt.Fprintln(os.Stderr, "No tickers stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tNAME\tALIASES")
		for _, t := range tickers {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Symbol, t.Name, strings.Join(t.Aliases, ", "))
		}
		return w.Flush()
	},
}

func init() {
	tickersLoadCmd.Flags().String("file", "", "path to a YAML list of tickers (required)")
	_ = tickersLoadCmd.MarkFlagRequired("file")

	tickersCmd.AddCommand(tickersLoadCmd)
	tickersCmd.AddCommand(tickersListCmd)
	rootCmd.AddCommand(tickersCmd)
}
