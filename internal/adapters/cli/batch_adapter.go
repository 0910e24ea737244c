// Package cli contains thin adapters that translate terminal operations to service calls.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/core/effects"
	"github.com/example/mobi2epub/internal/ports/primary"
)

// EventPollInterval is how often the controller drains the event queue.
const EventPollInterval = 100 * time.Millisecond

// BatchAdapter is a thin adapter that translates CLI operations to ConverterService calls.
// It depends only on the ConverterService interface, enabling easy testing with mocks.
type BatchAdapter struct {
	service      primary.ConverterService
	out          io.Writer
	pollInterval time.Duration
}

// NewBatchAdapter creates a new BatchAdapter with the given service.
func NewBatchAdapter(service primary.ConverterService, out io.Writer) *BatchAdapter {
	return &BatchAdapter{
		service:      service,
		out:          out,
		pollInterval: EventPollInterval,
	}
}

// Add enqueues each path and prints what happened.
// Paths that fail to enqueue are reported together.
func (a *BatchAdapter) Add(ctx context.Context, paths []string) (int, error) {
	var merr *multierror.Error
	added := 0
	for _, p := range paths {
		res, err := a.service.Enqueue(ctx, p)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		added += res.Added
	}
	a.Flush()

	if a.service.IsRunning() && added > 0 {
		fmt.Fprintf(a.out, "Added %d file(s) for the next batch after the current run.\n", added)
	}
	return added, merr.ErrorOrNil()
}

// List prints the queue.
func (a *BatchAdapter) List() []string {
	queue := a.service.Queue()
	if len(queue) == 0 {
		fmt.Fprintln(a.out, "Queue is empty.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Add files or folders:")
		fmt.Fprintln(a.out, "  add ~/Books/novel.mobi ~/Books/series/")
		return queue
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tPATH")
	fmt.Fprintln(w, "-\t----")
	for i, p := range queue {
		fmt.Fprintf(w, "%d\t%s\n", i+1, p)
	}
	w.Flush()
	return queue
}

// Remove drops paths from the queue.
func (a *BatchAdapter) Remove(ctx context.Context, paths []string) (int, error) {
	n, err := a.service.Remove(ctx, paths)
	if err != nil {
		return 0, fmt.Errorf("failed to remove: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Removed %d file(s) from the queue\n", n)
	return n, nil
}

// Clear empties the queue.
func (a *BatchAdapter) Clear(ctx context.Context) (int, error) {
	if len(a.service.Queue()) == 0 && !a.service.IsRunning() {
		fmt.Fprintln(a.out, "Queue is already empty.")
		return 0, nil
	}
	n, err := a.service.Clear(ctx)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(a.out, "Cleared %d queued file(s).\n", n)
	return n, nil
}

// Start begins a batch run. Its events are rendered by the next Flush or Watch.
func (a *BatchAdapter) Start(ctx context.Context, settings primary.BatchSettings) (*primary.StartBatchResponse, error) {
	return a.service.StartBatch(ctx, primary.StartBatchRequest{Settings: settings})
}

// Cancel requests cancellation of the active run.
func (a *BatchAdapter) Cancel() bool {
	ok := a.service.Cancel()
	a.Flush()
	return ok
}

// Flush drains and renders pending events. It returns the summary when the
// drained events included the end of a run.
func (a *BatchAdapter) Flush() *conversion.Summary {
	var finished *conversion.Summary
	for _, ev := range a.service.DrainEvents() {
		a.Render(ev)
		if fin, ok := ev.(primary.FinishedEvent); ok {
			s := fin.Summary
			finished = &s
		}
	}
	return finished
}

// Watch polls the event queue until the active run finishes. When ctx is
// cancelled the run is asked to stop once and Watch keeps polling until the
// run reports back.
func (a *BatchAdapter) Watch(ctx context.Context) conversion.Summary {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			a.service.Cancel()
		case <-ticker.C:
			if summary := a.Flush(); summary != nil {
				return *summary
			}
		}
	}
}

// Render prints one event.
func (a *BatchAdapter) Render(ev primary.Event) {
	switch e := ev.(type) {
	case primary.LogEvent:
		fmt.Fprintln(a.out, colorize(e.Level, e.Text))
	case primary.ProgressEvent:
		fmt.Fprintf(a.out, "%s\n", color.New(color.FgCyan).Sprintf("Progress: %d/%d", e.Current, e.Total))
	case primary.FinishedEvent:
		a.renderSummary(e.Summary)
	}
}

func (a *BatchAdapter) renderSummary(s conversion.Summary) {
	headline := s.Headline()
	switch {
	case s.Cancelled:
		headline = color.New(color.FgYellow).Sprint("⏹ " + headline)
	case len(s.Failures) > 0:
		headline = color.New(color.FgRed).Sprint("✗ " + headline)
	default:
		headline = color.New(color.FgGreen).Sprint("✓ " + headline)
	}

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, headline)
	fmt.Fprintf(a.out, "  %s.\n", s.Counts())
	for _, f := range s.Failures {
		fmt.Fprintf(a.out, "  %s %s\n", color.New(color.FgRed).Sprint("✗"), f.Source)
	}
	if last := s.LastOutputPath(); last != "" {
		fmt.Fprintf(a.out, "  Last output: %s\n", last)
	}
}

// ShowErrors prints the failure report of the last run.
func (a *BatchAdapter) ShowErrors() string {
	report := a.service.LastFailureReport()
	if report == "" {
		fmt.Fprintln(a.out, "No conversion errors.")
		return ""
	}
	fmt.Fprintln(a.out, report)
	return report
}

// WriteErrors writes the failure report of the last run to path.
// Nothing is written when the last run had no failures.
func (a *BatchAdapter) WriteErrors(path string) error {
	report := a.service.LastFailureReport()
	if report == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(report+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}
	fmt.Fprintf(a.out, "Wrote conversion errors to %s\n", path)
	return nil
}

// Status prints whether a run is active and the queue length.
func (a *BatchAdapter) Status() {
	state := color.New(color.FgGreen).Sprint("idle")
	if a.service.IsRunning() {
		state = color.New(color.FgYellow).Sprint("converting")
	}
	fmt.Fprintf(a.out, "Status: %s\n", state)
	fmt.Fprintf(a.out, "Queue:  %d file(s)\n", len(a.service.Queue()))
}

// RenderError prints err, one line per aggregated problem.
func (a *BatchAdapter) RenderError(err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			fmt.Fprintln(a.out, colorize(effects.LevelError, "✗ "+e.Error()))
		}
		return
	}
	fmt.Fprintln(a.out, colorize(effects.LevelError, "✗ "+err.Error()))
}

func colorize(level, text string) string {
	switch level {
	case effects.LevelSuccess:
		return color.New(color.FgGreen).Sprint(text)
	case effects.LevelWarn:
		return color.New(color.FgYellow).Sprint(text)
	case effects.LevelError:
		return color.New(color.FgRed).Sprint(text)
	default:
		return text
	}
}
