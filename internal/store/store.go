package store

import (
	"context"
	"time"

	"github.com/marketpulse/newsdesk-cli/internal/model"
)

// RunFilter specifies criteria for listing processing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence boundary for the ticker-mention pipeline.
// Articles and mentions are append-only; the hash uniqueness constraint on
// articles is the single serialization point for deduplication.
type Store interface {
	// Sources
	EnsureSource(ctx context.Context, name string) (int64, error)

	// Articles
	InsertArticleIfNew(ctx context.Context, a model.Article) (id int64, wasNew bool, err error)

	// Mentions
	InsertMention(ctx context.Context, m model.Mention) error
	MentionsForDate(ctx context.Context, date time.Time) ([]model.MentionFact, error)

	// Tickers (read-only reference data, maintained via UpsertTickers)
	ListTickers(ctx context.Context) ([]model.Ticker, error)
	UpsertTickers(ctx context.Context, tickers []model.Ticker) (int, error)

	// Runs
	RecordRun(ctx context.Context, run model.ProcessingRun) (int64, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ProcessingRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// dayBoundsUTC returns the half-open UTC interval covering the calendar day
// of date.
func dayBoundsUTC(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
