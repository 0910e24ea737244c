// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrConverterNotFound is returned by ConverterRunner.Start when the binary cannot be spawned.
var ErrConverterNotFound = errors.New("converter not found")

// ConverterRunner defines the secondary port for the external conversion tool.
type ConverterRunner interface {
	// LookPath resolves the converter command on the execution search path.
	LookPath(command string) (string, error)

	// Start spawns args[0] with the remaining arguments.
	// Errors wrapping ErrConverterNotFound mean the binary does not exist.
	Start(ctx context.Context, args []string) (Process, error)
}

// Process is a running converter invocation.
type Process interface {
	// Wait blocks until the process exits or timeout elapses.
	// On timeout the process is killed and any partial output is returned.
	// Wait must be called exactly once.
	Wait(timeout time.Duration) RunResult

	// Terminate sends a termination signal. Safe to call concurrently with Wait.
	Terminate() error
}

// RunResult is what a finished converter process left behind.
type RunResult struct {
	ExitCode int // -1 when killed by a signal or never started
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error // failures other than a non-zero exit
}
