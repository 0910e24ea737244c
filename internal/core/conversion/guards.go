package conversion

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// StartBatchContext provides context for batch start guards.
// All filesystem and PATH lookups are done by the caller beforehand.
type StartBatchContext struct {
	IsRunning        bool
	QueueLength      int
	ConverterCommand string
	ConverterFound   bool
	InstallHint      string
	TimeoutSeconds   int
	OutputDir        string // empty when no override
	OutputDirIsDir   bool   // only checked if OutputDir != ""
}

// ClearQueueContext provides context for queue clear guards.
type ClearQueueContext struct {
	IsRunning bool
}

// RemoveQueueContext provides context for queue removal guards.
type RemoveQueueContext struct {
	IsRunning bool
}

// CanStartBatch evaluates whether a batch run may begin at all.
// Rules:
// - No other batch may be running
// - The queue must not be empty
func CanStartBatch(ctx StartBatchContext) GuardResult {
	if ctx.IsRunning {
		return GuardResult{Allowed: false, Reason: "Conversion already running."}
	}
	if ctx.QueueLength == 0 {
		return GuardResult{Allowed: false, Reason: "No .mobi files queued for conversion."}
	}
	return GuardResult{Allowed: true}
}

// CheckPreconditions evaluates the hard preconditions of a batch run and
// returns every rule that is violated, so they can be reported together.
// Rules:
// - The converter must be found on PATH
// - The timeout must be within [MinTimeoutSeconds, MaxTimeoutSeconds]
// - The output directory must exist (if provided)
func CheckPreconditions(ctx StartBatchContext) []GuardResult {
	var denied []GuardResult

	if !ctx.ConverterFound {
		reason := fmt.Sprintf("Calibre's '%s' command was not found.", ctx.ConverterCommand)
		if ctx.InstallHint != "" {
			reason += " " + ctx.InstallHint
		}
		denied = append(denied, GuardResult{Allowed: false, Reason: reason})
	}

	if r := CheckTimeout(ctx.TimeoutSeconds); !r.Allowed {
		denied = append(denied, r)
	}

	if ctx.OutputDir != "" && !ctx.OutputDirIsDir {
		denied = append(denied, GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Selected output folder does not exist: %s", ctx.OutputDir),
		})
	}

	return denied
}

// CheckTimeout validates a per-file timeout in seconds.
func CheckTimeout(seconds int) GuardResult {
	if seconds < MinTimeoutSeconds {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("Timeout must be at least %d seconds.", MinTimeoutSeconds)}
	}
	if seconds > MaxTimeoutSeconds {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("Timeout must be %d seconds or less.", MaxTimeoutSeconds)}
	}
	return GuardResult{Allowed: true}
}

// CanClearQueue evaluates whether the queue may be cleared.
// Rules:
// - No batch may be running
func CanClearQueue(ctx ClearQueueContext) GuardResult {
	if ctx.IsRunning {
		return GuardResult{
			Allowed: false,
			Reason:  "Wait for the current conversion to finish before clearing the list.",
		}
	}
	return GuardResult{Allowed: true}
}

// CanRemoveFromQueue evaluates whether paths may be removed from the queue.
// Removals during a run happen only through the failure policy.
// Rules:
// - No batch may be running
func CanRemoveFromQueue(ctx RemoveQueueContext) GuardResult {
	if ctx.IsRunning {
		return GuardResult{
			Allowed: false,
			Reason:  "Wait for the current conversion to finish before removing files.",
		}
	}
	return GuardResult{Allowed: true}
}
