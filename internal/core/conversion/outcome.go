package conversion

import (
	"fmt"
	"strings"
	"time"
)

// Status is the classified result of attempting one conversion request.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the immutable result of one conversion request.
type Outcome struct {
	Source     string
	OutputPath string // resolved target, also set for skips and failures
	Status     Status
	Detail     string
}

// Success pairs a converted source with its resolved output path.
type Success struct {
	Source     string
	OutputPath string
}

// Failure pairs a source with the detail text explaining why it failed.
type Failure struct {
	Source string
	Detail string
}

// Summary is the terminal report of one batch run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome // every processed request, in order
	Successes  []Success
	Skipped    []string
	Failures   []Failure
	Total      int
	Processed  int
	Cancelled  bool
}

// Record folds an outcome into the summary.
// Cancelled outcomes are listed among failures with their detail.
func (s *Summary) Record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusSuccess:
		s.Successes = append(s.Successes, Success{Source: o.Source, OutputPath: o.OutputPath})
	case StatusSkipped:
		s.Skipped = append(s.Skipped, o.Source)
	case StatusFailed, StatusCancelled:
		s.Failures = append(s.Failures, Failure{Source: o.Source, Detail: o.Detail})
	}
}

// ResolvedSources returns the sources that leave the work queue after the run.
// Successes and skips always leave; failures leave only under RemoveFailed.
func (s Summary) ResolvedSources(policy FailurePolicy) []string {
	resolved := make([]string, 0, len(s.Successes)+len(s.Skipped)+len(s.Failures))
	for _, ok := range s.Successes {
		resolved = append(resolved, ok.Source)
	}
	resolved = append(resolved, s.Skipped...)
	if policy == RemoveFailed {
		for _, f := range s.Failures {
			resolved = append(resolved, f.Source)
		}
	}
	return resolved
}

// Counts returns the one-line run tally.
func (s Summary) Counts() string {
	return fmt.Sprintf("%d converted, %d skipped, %d failed", len(s.Successes), len(s.Skipped), len(s.Failures))
}

// FinishedLine returns the log line written when a run ends.
func (s Summary) FinishedLine() string {
	return fmt.Sprintf("Finished: %s (processed this run: %d/%d).", s.Counts(), s.Processed, s.Total)
}

// Headline distinguishes cancelled, completed-with-failures and all-succeeded runs.
func (s Summary) Headline() string {
	switch {
	case s.Cancelled:
		return fmt.Sprintf("Conversion cancelled: stopped after %d/%d file(s).", s.Processed, s.Total)
	case len(s.Failures) > 0:
		return "Conversion complete with failures."
	default:
		return "Conversion complete."
	}
}

// LastOutputPath returns the output of the most recent success, or "".
func (s Summary) LastOutputPath() string {
	if len(s.Successes) == 0 {
		return ""
	}
	return s.Successes[len(s.Successes)-1].OutputPath
}

// FormatFailureReport renders failures as copyable text,
// one "<source>\n<detail>" block per failure separated by blank lines.
func FormatFailureReport(failures []Failure) string {
	blocks := make([]string, 0, len(failures))
	for _, f := range failures {
		blocks = append(blocks, f.Source+"\n"+f.Detail)
	}
	return strings.Join(blocks, "\n\n")
}
