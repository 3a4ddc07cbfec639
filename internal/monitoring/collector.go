// Package monitoring summarizes recent processing runs into a health
// snapshot for the status command.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/marketpulse/newsdesk-cli/internal/model"
	"github.com/marketpulse/newsdesk-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	RunsTotal   int     `json:"runs_total"`
	RunsSuccess int     `json:"runs_success"`
	RunsFailed  int     `json:"runs_failed"`
	RunsPartial int     `json:"runs_partial"`
	FailRate    float64 `json:"fail_rate"`

	NewArticles int `json:"new_articles"`
	Duplicates  int `json:"duplicates"`
	Mentions    int `json:"mentions"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from recorded runs.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarizes the runs recorded within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusSuccess:
			snap.RunsSuccess++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusPartial:
			snap.RunsPartial++
		}
		snap.NewArticles += r.NewArticles
		snap.Duplicates += r.Duplicates
		snap.Mentions += r.Mentions
	}
	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)

		// ListRuns returns newest first.
		last := runs[0]
		snap.LastRunAt = &last.StartedAt
		snap.LastRunStatus = string(last.Status)
	}

	return snap, nil
}
