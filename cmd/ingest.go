package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/marketpulse/newsdesk-cli/internal/fuse"
	"github.com/marketpulse/newsdesk-cli/internal/generator"
	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/pipeline"
	"github.com/marketpulse/newsdesk-cli/pkg/embed"
)

// ingestArticle is the input shape for one fetched article. The source is a
// feed name resolved to a source id at ingest time.
type ingestArticle struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process a batch of fetched articles",
	Long:  "Deduplicates each article, runs the enabled mention detectors over the new ones, and persists confirmed ticker mentions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		defaultSource, _ := cmd.Flags().GetString("source")

		data, err := os.ReadFile(file)
		if err != nil {
			return eris.Wrap(err, "read articles file")
		}
		var articles []ingestArticle
		if err := json.Unmarshal(data, &articles); err != nil {
			return eris.Wrap(err, "parse articles file")
		}
		if len(articles) == 0 {
			fmt.Fprintln(os.Stderr, "No articles in input.")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		sourceIDs := make(map[string]int64)
		batch := make([]model.RawArticle, 0, len(articles))
		for _, a := range articles {
			name := a.Source
			if name == "" {
				name = defaultSource
			}
			if name == "" {
				return eris.Errorf("article %q has no source and no --source default given", a.URL)
			}
			id, ok := sourceIDs[name]
			if !ok {
				id, err = st.EnsureSource(ctx, name)
				if err != nil {
					return err
				}
				sourceIDs[name] = id
			}
			batch = append(batch, model.RawArticle{
				Title:       a.Title,
				Body:        a.Body,
				URL:         a.URL,
				PublishedAt: a.PublishedAt,
				SourceID:    id,
			})
		}

		var embedder generator.Embedder
		if cfg.Generators.Semantic {
			embedder = embed.NewClient(cfg.Embed)
		}
		gens := generator.Enabled(cfg, embedder)

		orch := pipeline.New(st, gens, fuse.New(cfg.Fusion), cfg)
		run, runErr := orch.Run(ctx, batch)

		fmt.Printf("Run %s finished: %s\n", run.BatchID, run.Status)
		fmt.Printf("  new articles: %d\n", run.NewArticles)
		fmt.Printf("  duplicates:   %d\n", run.Duplicates)
		fmt.Printf("  failed:       %d\n", run.Failed)
		fmt.Printf("  mentions:     %d\n", run.Mentions)
		return runErr
	},
}

func init() {
	ingestCmd.Flags().String("file", "", "path to a JSON array of articles (required)")
	ingestCmd.Flags().String("source", "", "default source name for articles without one")
	_ = ingestCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(ingestCmd)
}
