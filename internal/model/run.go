package model

import "time"

// RunStatus is the terminal state of one pipeline invocation.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusPartial RunStatus = "partial"
)

// ProcessingRun is the append-only audit record for one orchestrator
// invocation. Exactly one row is written per run, on every exit path.
type ProcessingRun struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	NewArticles int       `json:"new_articles"`
	Duplicates  int       `json:"duplicates"`
	Failed      int       `json:"failed"`
	Mentions    int       `json:"mentions"`
	Status      RunStatus `json:"status"`
	Log         string    `json:"log,omitempty"`
}
