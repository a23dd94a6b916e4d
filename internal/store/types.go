package store

import (
	"context"
	"time"
)

// RunWriter defines persistence for completed suite runs.
type RunWriter interface {
	// SaveRun stores a run summary together with its per-evaluation results.
	SaveRun(ctx context.Context, run *RunRecord) error
	// IngestBatch stores externally submitted records, ignoring records
	// whose IDs were already stored.
	IngestBatch(ctx context.Context, runs []*RunRecord, results []*ResultRecord) error
}

// RunReader defines read access to stored run history.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	GetRunResults(ctx context.Context, runID string) ([]*ResultRecord, error)
	GetPromptHistory(ctx context.Context, promptName string, limit int) ([]*RunRecord, error)
}

// Store defines persistence for runs and their evaluation results.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// RunRecord stores a single suite-run summary.
type RunRecord struct {
	ID            string
	CreatedAt     time.Time
	PromptName    string
	Total         int
	Passed        int
	Failed        int
	DurationMs    int64
	ExecutorCount int

	// Results are persisted alongside the run by SaveRun. GetRun leaves
	// them nil; load them with GetRunResults.
	Results []*ResultRecord
}

// ResultRecord stores a single evaluation outcome.
type ResultRecord struct {
	ExecutionID   string
	RunID         string
	CaseName      string
	Input         string
	ExecutorLabel string
	Passed        bool
	DurationMs    int64
	Tokens        int
	Error         string
}
