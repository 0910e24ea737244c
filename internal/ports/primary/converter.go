// Package primary defines the primary ports (driving adapters) for the application.
package primary

import (
	"context"

	"github.com/example/mobi2epub/internal/core/conversion"
)

// ConverterService defines the primary port for queueing and batch conversion.
// It is the controller object: it owns the work queue and the batch lifecycle.
// Every method is safe to call from the presentation goroutine while a batch runs.
type ConverterService interface {
	// Enqueue adds a MOBI file, or every MOBI file beneath a directory.
	Enqueue(ctx context.Context, path string) (*EnqueueResult, error)

	// Remove drops the given paths from the queue, preserving the order of the rest.
	// It fails with app.ErrBusy while a batch runs.
	Remove(ctx context.Context, paths []string) (int, error)

	// Clear empties the queue. It fails with app.ErrBusy while a batch runs.
	Clear(ctx context.Context) (int, error)

	// Queue returns the pending requests in insertion order.
	Queue() []string

	// IsRunning reports whether a batch run is active.
	IsRunning() bool

	// StartBatch validates preconditions and starts converting a snapshot of the queue.
	StartBatch(ctx context.Context, req StartBatchRequest) (*StartBatchResponse, error)

	// Cancel requests cancellation of the active batch. It returns false when idle.
	Cancel() bool

	// DrainEvents returns every pending event in publication order.
	DrainEvents() []Event

	// LastFailureReport returns the copyable failure report of the last finished run.
	LastFailureReport() string
}

// EnqueueResult contains the result of enqueuing one path.
type EnqueueResult struct {
	Path      string // absolute form of the given path
	Directory bool   // true when Path was a directory walked recursively
	Added     int    // 0 or 1 for a file, the count added for a directory
}

// BatchSettings are the per-run options taken from configuration.
type BatchSettings struct {
	ExistingPolicy conversion.ExistingPolicy
	FailurePolicy  conversion.FailurePolicy
	TimeoutSeconds int
	DeleteSource   bool
	OutputDir      string // empty when outputs sit next to sources
	Converter      string // command name or path, e.g. "ebook-convert"
}

// StartBatchRequest contains parameters for starting a batch run.
type StartBatchRequest struct {
	Settings BatchSettings
}

// StartBatchResponse describes the batch run that was started.
type StartBatchResponse struct {
	RunID         string
	Total         int
	ConverterPath string
}
