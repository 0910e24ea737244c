package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/core/effects"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

var (
	// ErrBusy is returned when the queue cannot be modified during a batch run.
	ErrBusy = errors.New("wait for the current conversion to finish before changing the list")
	// ErrAlreadyRunning is returned when a batch run is started while another is active.
	ErrAlreadyRunning = errors.New("conversion already running")
)

// ConverterServiceImpl implements the ConverterService interface.
// It owns the work queue and the lifecycle of the single active batch run.
type ConverterServiceImpl struct {
	fs     secondary.FileSystem
	runner secondary.ConverterRunner
	driver *BatchDriver
	events *EventQueue
	logger *slog.Logger
	newID  func() string
	goos   string

	mu         sync.Mutex
	queue      *WorkQueue
	active     *BatchRun
	lastReport string
}

// NewConverterService creates a new ConverterService with injected dependencies.
func NewConverterService(
	fs secondary.FileSystem,
	runner secondary.ConverterRunner,
	driver *BatchDriver,
	events *EventQueue,
	logger *slog.Logger,
) *ConverterServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConverterServiceImpl{
		fs:     fs,
		runner: runner,
		driver: driver,
		events: events,
		logger: logger,
		newID:  uuid.NewString,
		goos:   runtime.GOOS,
		queue:  NewWorkQueue(),
	}
}

// Enqueue adds a MOBI file or every MOBI file beneath a directory.
func (s *ConverterServiceImpl) Enqueue(ctx context.Context, path string) (*primary.EnqueueResult, error) {
	abs, err := s.fs.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	result := &primary.EnqueueResult{Path: abs}

	switch {
	case s.fs.IsFile(abs):
		if !conversion.IsSourceFile(abs) {
			s.log(effects.Info(fmt.Sprintf("Skipped unsupported file: %s", abs)))
			return result, nil
		}
		if s.enqueueFile(abs) {
			result.Added = 1
		}
	case s.fs.IsDir(abs):
		result.Directory = true
		sources, err := s.fs.WalkSources(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", abs, err)
		}
		for _, src := range sources {
			if s.enqueueFile(src) {
				result.Added++
			}
		}
		if result.Added == 0 {
			s.log(effects.Info(fmt.Sprintf("No .mobi files found in: %s", abs)))
		}
	default:
		s.log(effects.Info(fmt.Sprintf("Skipped unsupported path: %s", abs)))
	}

	return result, nil
}

func (s *ConverterServiceImpl) enqueueFile(path string) bool {
	s.mu.Lock()
	added := s.queue.Add(path)
	n := s.queue.Len()
	s.mu.Unlock()

	if !added {
		s.log(effects.Info(fmt.Sprintf("Skipped duplicate: %s", path)))
		return false
	}
	s.log(effects.Info(fmt.Sprintf("%d. %s", n, path)))
	return true
}

// Remove drops the given paths from the queue. It is refused while a run is
// active; the failure policy is the only way a run shrinks the queue.
func (s *ConverterServiceImpl) Remove(ctx context.Context, paths []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guardCtx := conversion.RemoveQueueContext{IsRunning: s.active != nil}
	if result := conversion.CanRemoveFromQueue(guardCtx); !result.Allowed {
		return 0, ErrBusy
	}
	return s.queue.Remove(canonicalKeys(paths)), nil
}

// Clear empties the queue and forgets the last failure report.
func (s *ConverterServiceImpl) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guardCtx := conversion.ClearQueueContext{IsRunning: s.active != nil}
	if result := conversion.CanClearQueue(guardCtx); !result.Allowed {
		return 0, ErrBusy
	}

	s.lastReport = ""
	return s.queue.Clear(), nil
}

// Queue returns the pending requests in insertion order.
func (s *ConverterServiceImpl) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Snapshot()
}

// IsRunning reports whether a batch run is active.
// A run stays active until its FinishedEvent has been drained.
func (s *ConverterServiceImpl) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// StartBatch validates every precondition and starts the worker goroutine.
func (s *ConverterServiceImpl) StartBatch(ctx context.Context, req primary.StartBatchRequest) (*primary.StartBatchResponse, error) {
	settings := req.Settings
	if settings.Converter == "" {
		settings.Converter = conversion.DefaultConverterCommand
	}

	// 1. Probe the environment outside the lock
	converterPath, lookErr := s.runner.LookPath(settings.Converter)
	outputDirIsDir := settings.OutputDir != "" && s.fs.IsDir(settings.OutputDir)

	s.mu.Lock()
	defer s.mu.Unlock()

	// 2. Guard check
	guardCtx := conversion.StartBatchContext{
		IsRunning:        s.active != nil,
		QueueLength:      s.queue.Len(),
		ConverterCommand: settings.Converter,
		ConverterFound:   lookErr == nil,
		InstallHint:      conversion.InstallHint(s.goos),
		TimeoutSeconds:   settings.TimeoutSeconds,
		OutputDir:        settings.OutputDir,
		OutputDirIsDir:   outputDirIsDir,
	}
	if result := conversion.CanStartBatch(guardCtx); !result.Allowed {
		if guardCtx.IsRunning {
			return nil, ErrAlreadyRunning
		}
		return nil, result.Error()
	}
	var merr *multierror.Error
	for _, denied := range conversion.CheckPreconditions(guardCtx) {
		merr = multierror.Append(merr, denied.Error())
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	// 3. Snapshot and start
	run := &BatchRun{
		ID:            s.newID(),
		Sources:       s.queue.Snapshot(),
		Settings:      settings,
		ConverterPath: converterPath,
		StartedAt:     time.Now(),
	}
	s.active = run
	s.lastReport = ""

	if settings.OutputDir != "" {
		s.log(effects.Info(fmt.Sprintf("Using output folder: %s", settings.OutputDir)))
	}
	s.log(effects.Info(fmt.Sprintf("Starting conversion of %d file(s).", len(run.Sources))))

	go s.driver.Run(context.WithoutCancel(ctx), run)

	return &primary.StartBatchResponse{
		RunID:         run.ID,
		Total:         len(run.Sources),
		ConverterPath: converterPath,
	}, nil
}

// Cancel requests cancellation of the active batch run and terminates the
// converter in flight. It returns false when no run is active or the worker
// has already finished.
func (s *ConverterServiceImpl) Cancel() bool {
	s.mu.Lock()
	run := s.active
	s.mu.Unlock()

	if run == nil {
		s.log(effects.Info("No active conversion to cancel."))
		return false
	}
	if run.Finished() {
		s.log(effects.Info("Conversion already finished."))
		return false
	}

	run.RequestCancel()
	if _, err := s.driver.Terminate(); err != nil {
		s.log(effects.Warn(fmt.Sprintf("Failed to terminate current conversion: %v", err)))
		return true
	}
	s.log(effects.Warn("Cancellation requested. Stopping after current step."))
	return true
}

// DrainEvents returns every pending event. When a run has finished, the
// failure policy is applied and the summary log lines precede the FinishedEvent.
func (s *ConverterServiceImpl) DrainEvents() []primary.Event {
	pending := s.events.Drain()
	out := make([]primary.Event, 0, len(pending))
	for _, ev := range pending {
		if finished, ok := ev.(primary.FinishedEvent); ok {
			out = append(out, s.settle(finished.Summary)...)
		}
		out = append(out, ev)
	}
	return out
}

// LastFailureReport returns the failure report of the last finished run.
func (s *ConverterServiceImpl) LastFailureReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// settle applies the failure policy to the queue and ends the active run.
func (s *ConverterServiceImpl) settle(summary conversion.Summary) []primary.Event {
	s.mu.Lock()
	policy := conversion.KeepFailed
	if s.active != nil {
		policy = s.active.Settings.FailurePolicy
	}
	s.queue.Remove(canonicalKeys(summary.ResolvedSources(policy)))
	s.lastReport = conversion.FormatFailureReport(summary.Failures)
	s.active = nil
	remaining := s.queue.Len()
	s.mu.Unlock()

	lines := []effects.LogEffect{effects.Info(summary.FinishedLine())}
	if len(summary.Failures) > 0 {
		if policy == conversion.RemoveFailed {
			lines = append(lines, effects.Info("Removed failed files from queue per policy."))
		} else {
			lines = append(lines, effects.Info("Failed files remain queued for retry."))
		}
	}
	if summary.Cancelled {
		lines = append(lines, effects.Warn("Conversion cancelled by user."))
	}
	lines = append(lines, effects.Info(fmt.Sprintf("Queue now has %d file(s).", remaining)))

	evs := make([]primary.Event, 0, len(lines))
	for _, line := range lines {
		s.logger.Info(line.Message, "run_id", summary.RunID)
		evs = append(evs, primary.LogEvent{Level: line.Level, Text: line.Message})
	}
	return evs
}

// log publishes a controller-side log line.
func (s *ConverterServiceImpl) log(line effects.LogEffect) {
	s.events.Publish(primary.LogEvent{Level: line.Level, Text: line.Message})
	s.logger.Debug(line.Message)
}

// Ensure ConverterServiceImpl implements the interface
var _ primary.ConverterService = (*ConverterServiceImpl)(nil)
