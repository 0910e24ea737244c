package conversion

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/mobi2epub/internal/core/effects"
)

func baseContext() TransitionContext {
	return TransitionContext{
		Phase:          PhaseAttempt,
		Source:         "/books/book.mobi",
		OutputPath:     "/books/book.epub",
		Args:           InitialArgs("ebook-convert", "/books/book.mobi", "/books/book.epub"),
		TimeoutSeconds: 600,
	}
}

func TestNextTransition(t *testing.T) {
	splitTrace := "Traceback...\ncalibre.ebooks.oeb.transforms.split.SplitError: Could not find reasonable point at which to split"

	tests := []struct {
		name       string
		mutate     func(*TransitionContext)
		wantAction Action
		wantDetail string
	}{
		{
			name:       "exit zero succeeds",
			mutate:     func(c *TransitionContext) {},
			wantAction: ActionSucceed,
		},
		{
			name:       "spawn failure fails with fixed message",
			mutate:     func(c *TransitionContext) { c.Result = AttemptResult{ExitCode: -1, SpawnFailed: true} },
			wantAction: ActionFail,
			wantDetail: NotFoundDetail,
		},
		{
			name: "cancellation wins over non-zero exit",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 143, Stderr: splitTrace}
				c.CancelRequested = true
			},
			wantAction: ActionCancel,
			wantDetail: CancelledDetail,
		},
		{
			name: "cancellation after a clean exit still succeeds",
			mutate: func(c *TransitionContext) {
				c.CancelRequested = true
			},
			wantAction: ActionSucceed,
		},
		{
			name: "timeout names the limit",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: -1, TimedOut: true, Stdout: "partial"}
				c.TimeoutSeconds = 45
			},
			wantAction: ActionFail,
			wantDetail: "Timed out after 45 seconds.",
		},
		{
			name: "unexpected error fails with description",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: -1, Err: errors.New("pipe broke")}
			},
			wantAction: ActionFail,
			wantDetail: "Unexpected exception: pipe broke",
		},
		{
			name: "split signature on first attempt retries",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 1, Stderr: splitTrace}
			},
			wantAction: ActionRetry,
		},
		{
			name: "split signature in stdout also retries",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 1, Stdout: "... oeb/transforms/split.py line 12"}
			},
			wantAction: ActionRetry,
		},
		{
			name: "split signature on retry fails instead of retrying again",
			mutate: func(c *TransitionContext) {
				c.Phase = PhaseRetry
				c.Result = AttemptResult{ExitCode: 1, Stderr: splitTrace}
			},
			wantAction: ActionFail,
			wantDetail: splitTrace,
		},
		{
			name: "other failure carries tool output",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 2, Stderr: "  DRM protected  \n"}
			},
			wantAction: ActionFail,
			wantDetail: "DRM protected",
		},
		{
			name: "stderr preferred over stdout",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 2, Stdout: "progress 10%", Stderr: "bad header"}
			},
			wantAction: ActionFail,
			wantDetail: "bad header",
		},
		{
			name: "empty output names exit code",
			mutate: func(c *TransitionContext) {
				c.Result = AttemptResult{ExitCode: 3}
			},
			wantAction: ActionFail,
			wantDetail: "Process exited with code 3",
		},
		{
			name: "empty output on retry names retry exit code",
			mutate: func(c *TransitionContext) {
				c.Phase = PhaseRetry
				c.Result = AttemptResult{ExitCode: 4}
			},
			wantAction: ActionFail,
			wantDetail: "Retry exited with code 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext()
			tt.mutate(&ctx)

			got := NextTransition(ctx)
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if tt.wantDetail != "" && got.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", got.Detail, tt.wantDetail)
			}
			if got.Action != ActionRetry && got.RetryArgs != nil {
				t.Errorf("RetryArgs = %v, want nil for %q", got.RetryArgs, got.Action)
			}
		})
	}
}

func TestNextTransition_RetryArgsAppendFlags(t *testing.T) {
	ctx := baseContext()
	ctx.Result = AttemptResult{ExitCode: 1, Stderr: "could not find reasonable point at which to split"}

	got := NextTransition(ctx)

	want := "ebook-convert /books/book.mobi /books/book.epub --flow-size 0 --dont-split-on-page-breaks"
	if strings.Join(got.RetryArgs, " ") != want {
		t.Errorf("RetryArgs = %q, want %q", strings.Join(got.RetryArgs, " "), want)
	}
	if len(ctx.Args) != 3 {
		t.Errorf("original Args mutated: %v", ctx.Args)
	}
}

func TestNextTransition_NeverRetriesTwice(t *testing.T) {
	ctx := baseContext()
	ctx.Result = AttemptResult{ExitCode: 1, Stderr: "could not find reasonable point at which to split"}

	first := NextTransition(ctx)
	if first.Action != ActionRetry {
		t.Fatalf("first Action = %q, want retry", first.Action)
	}

	ctx.Phase = PhaseRetry
	ctx.Args = first.RetryArgs
	second := NextTransition(ctx)
	if second.Action != ActionFail {
		t.Errorf("second Action = %q, want fail", second.Action)
	}
}

func TestNextTransition_SuccessEffects(t *testing.T) {
	tests := []struct {
		name         string
		deleteSource bool
		phase        Phase
		wantRemove   bool
		wantLog      string
	}{
		{
			name:    "plain success logs output",
			phase:   PhaseAttempt,
			wantLog: "✓ Success: /books/book.epub",
		},
		{
			name:    "retry success mentions retry",
			phase:   PhaseRetry,
			wantLog: "✓ Success after split-safe retry: /books/book.epub",
		},
		{
			name:         "delete source schedules removal first",
			deleteSource: true,
			phase:        PhaseAttempt,
			wantRemove:   true,
			wantLog:      "✓ Success: /books/book.epub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext()
			ctx.Phase = tt.phase
			ctx.DeleteSource = tt.deleteSource

			got := NextTransition(ctx)

			_, firstIsRemove := got.Effects[0].(effects.FileEffect)
			if firstIsRemove != tt.wantRemove {
				t.Errorf("first effect is remove = %v, want %v", firstIsRemove, tt.wantRemove)
			}
			last, ok := got.Effects[len(got.Effects)-1].(effects.LogEffect)
			if !ok {
				t.Fatalf("last effect = %T, want LogEffect", got.Effects[len(got.Effects)-1])
			}
			if last.Message != tt.wantLog {
				t.Errorf("log = %q, want %q", last.Message, tt.wantLog)
			}
		})
	}
}

func TestTransition_Outcome(t *testing.T) {
	tests := []struct {
		action Action
		want   Status
	}{
		{ActionSucceed, StatusSuccess},
		{ActionFail, StatusFailed},
		{ActionCancel, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			o := Transition{Action: tt.action, Detail: "d"}.Outcome("/a.mobi", "/a.epub")
			if o.Status != tt.want {
				t.Errorf("Status = %q, want %q", o.Status, tt.want)
			}
			if o.Source != "/a.mobi" || o.OutputPath != "/a.epub" || o.Detail != "d" {
				t.Errorf("unexpected outcome %+v", o)
			}
		})
	}
}

func TestPlanSkip(t *testing.T) {
	o, effs := PlanSkip("/books/a.mobi", "/books/a.epub")

	if o.Status != StatusSkipped {
		t.Errorf("Status = %q, want skipped", o.Status)
	}
	if o.OutputPath != "/books/a.epub" {
		t.Errorf("OutputPath = %q, want existing target", o.OutputPath)
	}
	if len(effs) != 1 {
		t.Fatalf("expected one log effect, got %d", len(effs))
	}
}

func TestDeleteFailedDetail(t *testing.T) {
	got := DeleteFailedDetail("/books/a.mobi", errors.New("permission denied"))
	want := "Converted but could not delete source file: /books/a.mobi (permission denied)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
