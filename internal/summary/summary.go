// Package summary builds the daily mention report from confirmed mentions.
package summary

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/store"
)

// Aggregator produces daily summaries. It only reads from the store and is
// safe to re-run for the same date: identical inputs yield identical output
// ordering.
type Aggregator struct {
	store store.Store
}

func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Generate reports ranked mention counts and source diversity for the UTC
// calendar day of date. Tickers are ranked by confirmed-mention count
// descending, ties broken by ticker id ascending.
func (a *Aggregator) Generate(ctx context.Context, date time.Time) (*model.Summary, error) {
	facts, err := a.store.MentionsForDate(ctx, date)
	if err != nil {
		return nil, eris.Wrap(err, "summary: load mentions")
	}

	counts := make(map[int64]int)
	sources := make(map[int64]map[int64]struct{})
	for _, f := range facts {
		counts[f.TickerID]++
		if sources[f.TickerID] == nil {
			sources[f.TickerID] = make(map[int64]struct{})
		}
		sources[f.TickerID][f.SourceID] = struct{}{}
	}

	tickerIDs := make([]int64, 0, len(counts))
	for id := range counts {
		tickerIDs = append(tickerIDs, id)
	}
	sort.Slice(tickerIDs, func(i, j int) bool {
		if counts[tickerIDs[i]] != counts[tickerIDs[j]] {
			return counts[tickerIDs[i]] > counts[tickerIDs[j]]
		}
		return tickerIDs[i] < tickerIDs[j]
	})

	s := &model.Summary{
		Date:        date.UTC().Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		TopMentions: make([]model.TopMention, 0, len(tickerIDs)),
		Clusters:    make([]model.Cluster, 0, len(tickerIDs)),
	}
	for _, id := range tickerIDs {
		s.TopMentions = append(s.TopMentions, model.TopMention{Ticker: id, Count: counts[id]})
		s.Clusters = append(s.Clusters, model.Cluster{Ticker: id, SourcesCount: len(sources[id])})
	}

	zap.L().Debug("summary generated",
		zap.String("date", s.Date),
		zap.Int("tickers", len(s.TopMentions)),
		zap.Int("mentions", len(facts)))
	return s, nil
}
