package conversion

import (
	"fmt"
	"strings"

	"github.com/example/mobi2epub/internal/core/effects"
)

// Phase is the position of a request in the attempt/retry state machine.
//
//	attempt --(split signature)--> retry --> done
//	attempt --(anything else)----> done
//
// A retry is only ever produced from PhaseAttempt.
type Phase string

const (
	PhaseAttempt Phase = "attempt"
	PhaseRetry   Phase = "retry"
)

// Action is what the driver does next with a request.
type Action string

const (
	ActionSucceed Action = "succeed"
	ActionRetry   Action = "retry"
	ActionFail    Action = "fail"
	ActionCancel  Action = "cancel"
)

// Fixed detail texts.
const (
	NotFoundDetail  = "ebook-convert was not found. Install Calibre and ensure it is on PATH."
	CancelledDetail = "Cancelled by user."
)

// AttemptResult is the observed result of one converter invocation.
type AttemptResult struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	SpawnFailed bool  // converter binary could not be started
	TimedOut    bool  // killed after exceeding the timeout
	Err         error // any other error while running
}

// TransitionContext provides everything needed to classify an attempt.
type TransitionContext struct {
	Phase           Phase
	Source          string
	OutputPath      string
	Args            []string // command line of the attempt that produced Result
	Result          AttemptResult
	CancelRequested bool
	TimeoutSeconds  int
	DeleteSource    bool
}

// Transition is the decision for a request after one attempt.
type Transition struct {
	Action    Action
	Detail    string
	RetryArgs []string         // set only for ActionRetry
	Effects   []effects.Effect // executed in order by the shell
}

// Outcome converts a terminal transition into an outcome value.
// It must not be called for ActionRetry.
func (t Transition) Outcome(source, outputPath string) Outcome {
	status := StatusFailed
	switch t.Action {
	case ActionSucceed:
		status = StatusSuccess
	case ActionCancel:
		status = StatusCancelled
	}
	return Outcome{Source: source, OutputPath: outputPath, Status: status, Detail: t.Detail}
}

// InitialArgs builds the first command line for a request.
func InitialArgs(converter, source, outputPath string) []string {
	return []string{converter, source, outputPath}
}

// PlanAttempt returns the effects announcing the first attempt of a request.
func PlanAttempt(source, outputPath string) []effects.Effect {
	return []effects.Effect{effects.Info(fmt.Sprintf("Converting: %s -> %s", source, outputPath))}
}

// PlanSkip returns the outcome and effects for a request whose target exists under PolicySkip.
func PlanSkip(source, outputPath string) (Outcome, []effects.Effect) {
	outcome := Outcome{
		Source:     source,
		OutputPath: outputPath,
		Status:     StatusSkipped,
		Detail:     "Output already exists.",
	}
	return outcome, []effects.Effect{effects.Info(fmt.Sprintf("Skipped existing EPUB: %s", outputPath))}
}

// NextTransition classifies an attempt and decides what happens next.
// This is a pure function; the order of the rules is significant:
//  1. spawn failure fails
//  2. exit 0 succeeds (and schedules source removal when enabled)
//  3. a pending cancellation cancels, whatever the exit code
//  4. a timeout fails
//  5. an unexpected run error fails
//  6. the split signature retries, but only from PhaseAttempt
//  7. anything else fails with the trimmed tool output
func NextTransition(ctx TransitionContext) Transition {
	res := ctx.Result

	if res.SpawnFailed {
		return fail(NotFoundDetail, effects.Error("✗ "+NotFoundDetail))
	}

	if res.ExitCode == 0 && !res.TimedOut && res.Err == nil {
		return succeed(ctx)
	}

	if ctx.CancelRequested {
		return Transition{
			Action:  ActionCancel,
			Detail:  CancelledDetail,
			Effects: []effects.Effect{effects.Warn(fmt.Sprintf("⏹ Cancelled: %s", ctx.Source))},
		}
	}

	if res.TimedOut {
		return fail(
			fmt.Sprintf("Timed out after %d seconds.", ctx.TimeoutSeconds),
			effects.Error(fmt.Sprintf("✗ Timeout converting: %s", ctx.Source)),
		)
	}

	if res.Err != nil {
		msg := fmt.Sprintf("Unexpected exception: %v", res.Err)
		return fail(msg, effects.Error("✗ "+msg))
	}

	if ctx.Phase == PhaseAttempt && IsSplitError(res.Stderr+"\n"+res.Stdout) {
		retryArgs := make([]string, 0, len(ctx.Args)+len(SplitRetryFlags))
		retryArgs = append(retryArgs, ctx.Args...)
		retryArgs = append(retryArgs, SplitRetryFlags...)
		return Transition{
			Action:    ActionRetry,
			RetryArgs: retryArgs,
			Effects: []effects.Effect{effects.Warn(fmt.Sprintf(
				"Split error detected. Retrying with safer split settings: %s",
				strings.Join(SplitRetryFlags, " "),
			))},
		}
	}

	output := TrimToolOutput(ToolOutput(res.Stdout, res.Stderr))
	if ctx.Phase == PhaseRetry {
		if output != "" {
			return fail(output, effects.Error(fmt.Sprintf("✗ Retry also failed for %s:\n%s", ctx.Source, output)))
		}
		return fail(
			fmt.Sprintf("Retry exited with code %d", res.ExitCode),
			effects.Error(fmt.Sprintf("✗ Retry failed for %s: process exited with code %d", ctx.Source, res.ExitCode)),
		)
	}
	if output != "" {
		return fail(output, effects.Error(fmt.Sprintf("✗ Error converting %s:\n%s", ctx.Source, output)))
	}
	return fail(
		fmt.Sprintf("Process exited with code %d", res.ExitCode),
		effects.Error(fmt.Sprintf("✗ Error converting %s: process exited with code %d", ctx.Source, res.ExitCode)),
	)
}

// DeleteFailedDetail is the failure detail when conversion succeeded but the source could not be removed.
// The converted output stays on disk.
func DeleteFailedDetail(source string, err error) string {
	return fmt.Sprintf("Converted but could not delete source file: %s (%v)", source, err)
}

func succeed(ctx TransitionContext) Transition {
	var effs []effects.Effect
	if ctx.DeleteSource {
		effs = append(effs,
			effects.FileEffect{Operation: "remove", Path: ctx.Source},
			effects.Info(fmt.Sprintf("Deleted source MOBI: %s", ctx.Source)),
		)
	}
	msg := fmt.Sprintf("✓ Success: %s", ctx.OutputPath)
	if ctx.Phase == PhaseRetry {
		msg = fmt.Sprintf("✓ Success after split-safe retry: %s", ctx.OutputPath)
	}
	effs = append(effs, effects.Success(msg))
	return Transition{Action: ActionSucceed, Effects: effs}
}

func fail(detail string, log effects.LogEffect) Transition {
	return Transition{Action: ActionFail, Detail: detail, Effects: []effects.Effect{log}}
}
