// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/example/mobi2epub/internal/version"
)

// Options selects the diagnostic sinks.
type Options struct {
	Debug   bool      // lower the console level from warn to debug
	LogFile string    // append JSON records here when set
	Console io.Writer // defaults to os.Stderr
}

// Setup installs the default logger: a text handler on the console fanned
// out with a JSON file handler when LogFile is set. The returned function
// closes the log file.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := slog.LevelWarn
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
	}

	closer := func() error { return nil }
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = f.Close
	}

	logger := slog.New(slogmulti.Fanout(handlers...)).With(
		slog.String("service", "mobi2epub"),
		slog.String("version", version.Version),
	)
	slog.SetDefault(logger)
	return logger, closer, nil
}
