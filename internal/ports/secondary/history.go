package secondary

import (
	"context"
	"time"
)

// HistoryRepository defines the secondary port for the run history ledger.
// Only finished runs and their outcomes are stored, never the queue.
type HistoryRepository interface {
	// RecordRun stores a finished run together with its outcomes.
	RecordRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns the most recent runs, newest first, without outcomes.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// GetRun retrieves a run by ID including its outcomes.
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}

// RunRecord represents a finished batch run as stored in the ledger.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Processed  int
	Succeeded  int
	Skipped    int
	Failed     int
	Cancelled  bool
	Outcomes   []*OutcomeRecord
}

// OutcomeRecord represents one processed request of a run.
type OutcomeRecord struct {
	Seq        int
	Source     string
	OutputPath string
	Status     string
	Detail     string
}
