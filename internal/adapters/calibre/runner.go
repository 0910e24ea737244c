// Package calibre runs Calibre's ebook-convert as a child process.
package calibre

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/example/mobi2epub/internal/ports/secondary"
)

// waitDelay bounds how long Wait lingers on pipes held open by helper processes.
const waitDelay = 5 * time.Second

// Runner implements secondary.ConverterRunner with os/exec.
type Runner struct{}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// LookPath resolves command on PATH.
func (r *Runner) LookPath(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%w: %s", secondary.ErrConverterNotFound, command)
	}
	return path, nil
}

// Start spawns args[0] in its own process group with output captured in memory.
func (r *Runner) Start(ctx context.Context, args []string) (secondary.Process, error) {
	if len(args) == 0 {
		return nil, errors.New("empty converter command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	p := &process{cmd: cmd, done: make(chan error, 1)}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	configureProcess(cmd)
	cmd.Cancel = func() error { return killProcess(cmd) }
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", secondary.ErrConverterNotFound, args[0])
		}
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

// process is a started converter invocation.
type process struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	done   chan error
}

// Wait blocks until exit or timeout. On timeout the process group is killed
// and whatever was written so far is returned.
func (p *process) Wait(timeout time.Duration) secondary.RunResult {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	return p.await(expired)
}

func (p *process) await(expired <-chan time.Time) secondary.RunResult {
	select {
	case err := <-p.done:
		return p.result(err, false)
	case <-expired:
		// An exit that raced the timer is not a timeout.
		select {
		case err := <-p.done:
			return p.result(err, false)
		default:
		}
		_ = killProcess(p.cmd)
		return p.result(<-p.done, true)
	}
}

// Terminate asks the process group to exit.
func (p *process) Terminate() error {
	return terminateProcess(p.cmd)
}

func (p *process) result(waitErr error, timedOut bool) secondary.RunResult {
	res := secondary.RunResult{
		ExitCode: -1,
		Stdout:   p.stdout.String(),
		Stderr:   p.stderr.String(),
		TimedOut: timedOut,
	}
	if state := p.cmd.ProcessState; state != nil {
		res.ExitCode = state.ExitCode()
	}

	// A non-zero exit is reported through ExitCode, not as an error.
	var exitErr *exec.ExitError
	if waitErr != nil && !timedOut && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		res.Err = waitErr
	}
	return res
}

// Ensure Runner implements the interface
var _ secondary.ConverterRunner = (*Runner)(nil)
