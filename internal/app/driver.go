package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/core/effects"
	"github.com/example/mobi2epub/internal/ctxutil"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// BatchRun is one execution over an immutable snapshot of the work queue.
type BatchRun struct {
	ID            string
	Sources       []string
	Settings      primary.BatchSettings
	ConverterPath string // resolved converter binary, used as argv[0]
	StartedAt     time.Time

	cancel   atomic.Bool
	finished atomic.Bool
}

// RequestCancel sets the cancellation flag.
func (r *BatchRun) RequestCancel() { r.cancel.Store(true) }

// CancelRequested reports whether cancellation was requested.
func (r *BatchRun) CancelRequested() bool { return r.cancel.Load() }

// Finished reports whether the worker has published the run's FinishedEvent.
func (r *BatchRun) Finished() bool { return r.finished.Load() }

// processSlot holds the converter process currently in flight, if any.
type processSlot struct {
	mu   sync.Mutex
	proc secondary.Process
}

func (s *processSlot) acquire(p secondary.Process) {
	s.mu.Lock()
	s.proc = p
	s.mu.Unlock()
}

func (s *processSlot) clear() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

// terminate signals the process in flight. It returns false when the slot is empty.
func (s *processSlot) terminate() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return false, nil
	}
	return true, s.proc.Terminate()
}

// BatchDriver converts the requests of a BatchRun one at a time.
type BatchDriver struct {
	runner   secondary.ConverterRunner
	resolver *OutputResolver
	executor EffectExecutor
	events   *EventQueue
	history  secondary.HistoryRepository // nil when run history is disabled
	logger   *slog.Logger
	slot     processSlot
}

// NewBatchDriver creates a BatchDriver with injected dependencies.
func NewBatchDriver(
	runner secondary.ConverterRunner,
	resolver *OutputResolver,
	executor EffectExecutor,
	events *EventQueue,
	history secondary.HistoryRepository,
	logger *slog.Logger,
) *BatchDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchDriver{
		runner:   runner,
		resolver: resolver,
		executor: executor,
		events:   events,
		history:  history,
		logger:   logger,
	}
}

// Terminate signals the converter process in flight, if any.
func (d *BatchDriver) Terminate() (bool, error) {
	return d.slot.terminate()
}

// Run processes every request of run in order and publishes exactly one
// FinishedEvent when it returns. It is meant to run on its own goroutine.
func (d *BatchDriver) Run(ctx context.Context, run *BatchRun) conversion.Summary {
	ctx = ctxutil.WithRunID(ctx, run.ID)
	summary := conversion.Summary{
		RunID:     run.ID,
		StartedAt: run.StartedAt,
		Total:     len(run.Sources),
	}

	d.logger.InfoContext(ctx, "batch run started", "run_id", run.ID, "total", summary.Total)

	for i, source := range run.Sources {
		if run.CancelRequested() {
			summary.Cancelled = true
			break
		}

		outcome := d.convertOne(ctx, run, source)
		summary.Record(outcome)
		summary.Processed = i + 1
		d.events.Publish(primary.ProgressEvent{Current: summary.Processed, Total: summary.Total})

		if outcome.Status == conversion.StatusCancelled {
			summary.Cancelled = true
			break
		}
	}

	summary.FinishedAt = time.Now()
	d.logger.InfoContext(ctx, "batch run finished",
		"run_id", run.ID,
		"processed", summary.Processed,
		"succeeded", len(summary.Successes),
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failures),
		"cancelled", summary.Cancelled,
	)
	d.recordHistory(ctx, summary)

	run.finished.Store(true)
	d.events.Publish(primary.FinishedEvent{Summary: summary})
	return summary
}

// convertOne resolves, runs and classifies a single request.
// A panic is recovered into a failed outcome so the worker keeps going.
func (d *BatchDriver) convertOne(ctx context.Context, run *BatchRun, source string) (outcome conversion.Outcome) {
	settings := run.Settings
	outputPath := ""

	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprintf("Unexpected exception: %v", r)
			d.logEffects(ctx, effects.Error("✗ "+detail))
			outcome = conversion.Outcome{
				Source:     source,
				OutputPath: outputPath,
				Status:     conversion.StatusFailed,
				Detail:     detail,
			}
		}
	}()

	outputPath, skip := d.resolver.Resolve(source, settings.ExistingPolicy, settings.OutputDir)
	if skip {
		skipped, effs := conversion.PlanSkip(source, outputPath)
		d.logEffects(ctx, effs...)
		return skipped
	}

	d.logEffects(ctx, conversion.PlanAttempt(source, outputPath)...)

	tc := conversion.TransitionContext{
		Phase:          conversion.PhaseAttempt,
		Source:         source,
		OutputPath:     outputPath,
		Args:           conversion.InitialArgs(run.ConverterPath, source, outputPath),
		TimeoutSeconds: settings.TimeoutSeconds,
		DeleteSource:   settings.DeleteSource,
	}

	for {
		tc.Result = d.attempt(ctx, run, tc.Args)
		tc.CancelRequested = run.CancelRequested()

		tr := conversion.NextTransition(tc)
		if err := d.executor.Execute(ctx, tr.Effects); err != nil {
			cause := errors.Unwrap(err)
			if cause == nil {
				cause = err
			}
			detail := conversion.DeleteFailedDetail(source, cause)
			d.logEffects(ctx, effects.Error("✗ "+detail))
			return conversion.Outcome{
				Source:     source,
				OutputPath: outputPath,
				Status:     conversion.StatusFailed,
				Detail:     detail,
			}
		}

		if tr.Action == conversion.ActionRetry {
			tc.Phase = conversion.PhaseRetry
			tc.Args = tr.RetryArgs
			continue
		}
		return tr.Outcome(source, outputPath)
	}
}

// attempt runs the converter once and waits for it within the timeout.
func (d *BatchDriver) attempt(ctx context.Context, run *BatchRun, args []string) conversion.AttemptResult {
	proc, err := d.runner.Start(ctx, args)
	if err != nil {
		if errors.Is(err, secondary.ErrConverterNotFound) {
			return conversion.AttemptResult{ExitCode: -1, SpawnFailed: true}
		}
		return conversion.AttemptResult{ExitCode: -1, Err: err}
	}

	d.slot.acquire(proc)
	defer d.slot.clear()

	// Cancel may have raced with Start and found the slot empty.
	if run.CancelRequested() {
		if err := proc.Terminate(); err != nil {
			d.logger.WarnContext(ctx, "failed to terminate converter", "error", err)
		}
	}

	res := proc.Wait(time.Duration(run.Settings.TimeoutSeconds) * time.Second)
	d.logger.DebugContext(ctx, "converter exited",
		"args", args,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
	)
	return conversion.AttemptResult{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		TimedOut: res.TimedOut,
		Err:      res.Err,
	}
}

func (d *BatchDriver) logEffects(ctx context.Context, effs ...effects.Effect) {
	if err := d.executor.Execute(ctx, effs); err != nil {
		d.logger.ErrorContext(ctx, "failed to emit log", "error", err)
	}
}

func (d *BatchDriver) recordHistory(ctx context.Context, summary conversion.Summary) {
	if d.history == nil {
		return
	}
	if err := d.history.RecordRun(ctx, runRecord(summary)); err != nil {
		d.logger.ErrorContext(ctx, "failed to record run history", "run_id", summary.RunID, "error", err)
	}
}

// runRecord maps a finished summary to its history ledger row.
func runRecord(summary conversion.Summary) *secondary.RunRecord {
	record := &secondary.RunRecord{
		ID:         summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Total:      summary.Total,
		Processed:  summary.Processed,
		Succeeded:  len(summary.Successes),
		Skipped:    len(summary.Skipped),
		Failed:     len(summary.Failures),
		Cancelled:  summary.Cancelled,
	}
	for i, o := range summary.Outcomes {
		record.Outcomes = append(record.Outcomes, &secondary.OutcomeRecord{
			Seq:        i + 1,
			Source:     o.Source,
			OutputPath: o.OutputPath,
			Status:     string(o.Status),
			Detail:     o.Detail,
		})
	}
	return record
}
