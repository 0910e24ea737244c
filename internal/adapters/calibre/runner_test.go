package calibre

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/example/mobi2epub/internal/ports/secondary"
)

// helperArgs builds an argv that re-executes the test binary as a fake converter.
func helperArgs(mode string) []string {
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", mode, "in.mobi", "out.epub"}
}

// TestHelperProcess is not a real test. It is the fake converter spawned by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(100)
	}

	switch args[0] {
	case "exit0":
		fmt.Fprintln(os.Stdout, "Output saved to", args[len(args)-1])
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stdout, "progress 10%")
		fmt.Fprintln(os.Stderr, "DRM protected")
		os.Exit(2)
	case "split":
		fmt.Fprintln(os.Stderr, "calibre.ebooks.oeb.transforms.split.SplitError: Could not find reasonable point at which to split")
		os.Exit(1)
	case "sleep":
		fmt.Fprintln(os.Stdout, "started")
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	os.Exit(100)
}

func startHelper(t *testing.T, mode string) secondary.Process {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	proc, err := NewRunner().Start(context.Background(), helperArgs(mode))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return proc
}

func TestRunner_ExitCodes(t *testing.T) {
	tests := []struct {
		mode       string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{mode: "exit0", wantCode: 0, wantStdout: "Output saved to out.epub"},
		{mode: "fail", wantCode: 2, wantStdout: "progress 10%", wantStderr: "DRM protected"},
		{mode: "split", wantCode: 1, wantStderr: "could not find reasonable point"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			res := startHelper(t, tt.mode).Wait(time.Minute)

			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if res.TimedOut || res.Err != nil {
				t.Errorf("unexpected TimedOut=%v Err=%v", res.TimedOut, res.Err)
			}
			if !strings.Contains(res.Stdout, tt.wantStdout) {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if !strings.Contains(strings.ToLower(res.Stderr), strings.ToLower(tt.wantStderr)) {
				t.Errorf("Stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
		})
	}
}

func TestRunner_TimeoutKillsAndKeepsPartialOutput(t *testing.T) {
	proc := startHelper(t, "sleep")

	start := time.Now()
	res := proc.Wait(500 * time.Millisecond)

	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Wait took %v after timeout", elapsed)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil on timeout", res.Err)
	}
	if res.ExitCode == 0 {
		t.Error("expected a non-zero exit code after kill")
	}
}

func TestRunner_Terminate(t *testing.T) {
	proc := startHelper(t, "sleep")

	done := make(chan secondary.RunResult, 1)
	go func() { done <- proc.Wait(time.Minute) }()

	time.Sleep(200 * time.Millisecond)
	if err := proc.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}

	select {
	case res := <-done:
		if res.ExitCode == 0 || res.TimedOut {
			t.Errorf("result = %+v, want signalled exit", res)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}

	// Terminating an exited process is harmless.
	if err := proc.Terminate(); err != nil {
		t.Errorf("second Terminate = %v, want nil", err)
	}
}

func TestRunner_NotFound(t *testing.T) {
	r := NewRunner()

	_, err := r.Start(context.Background(), []string{"/nonexistent/ebook-convert-missing", "a.mobi", "a.epub"})
	if !errors.Is(err, secondary.ErrConverterNotFound) {
		t.Errorf("Start error = %v, want ErrConverterNotFound", err)
	}

	_, err = r.LookPath("ebook-convert-definitely-not-installed")
	if !errors.Is(err, secondary.ErrConverterNotFound) {
		t.Errorf("LookPath error = %v, want ErrConverterNotFound", err)
	}
}

func TestRunner_EmptyCommand(t *testing.T) {
	if _, err := NewRunner().Start(context.Background(), nil); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestProcess_ExitRacingTimeoutIsNotTimedOut(t *testing.T) {
	for i := 0; i < 5; i++ {
		proc := startHelper(t, "exit0").(*process)

		deadline := time.Now().Add(30 * time.Second)
		for len(proc.done) == 0 {
			if time.Now().After(deadline) {
				t.Fatal("helper did not exit")
			}
			time.Sleep(time.Millisecond)
		}

		expired := make(chan time.Time, 1)
		expired <- time.Now()
		res := proc.await(expired)

		if res.TimedOut {
			t.Fatalf("run %d: TimedOut = true for a process that already exited", i)
		}
		if res.ExitCode != 0 {
			t.Errorf("run %d: ExitCode = %d, want 0", i, res.ExitCode)
		}
	}
}
