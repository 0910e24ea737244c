// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/mobi2epub/internal/core/effects"
	"github.com/example/mobi2epub/internal/ctxutil"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor with real I/O.
// Log effects become user-visible events and diagnostic log records.
type DefaultEffectExecutor struct {
	fs     secondary.FileSystem
	events *EventQueue
	logger *slog.Logger
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(fs secondary.FileSystem, events *EventQueue, logger *slog.Logger) *DefaultEffectExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultEffectExecutor{fs: fs, events: events, logger: logger}
}

// Execute processes a slice of effects, executing each in sequence.
// It stops at the first failing effect.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.FileEffect:
		return e.executeFile(ctx, typed)
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeFile(ctx context.Context, eff effects.FileEffect) error {
	switch eff.Operation {
	case "remove":
		return e.fs.Remove(eff.Path)
	default:
		return fmt.Errorf("unknown file operation: %s", eff.Operation)
	}
}

func (e *DefaultEffectExecutor) executeLog(ctx context.Context, eff effects.LogEffect) {
	e.events.Publish(primary.LogEvent{Level: eff.Level, Text: eff.Message})

	attrs := make([]any, 0, 2+2*len(eff.Fields))
	if runID := ctxutil.RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, "run_id", runID)
	}
	for k, v := range eff.Fields {
		attrs = append(attrs, k, v)
	}
	e.logger.Log(ctx, slogLevel(eff.Level), eff.Message, attrs...)
}

func slogLevel(level string) slog.Level {
	switch level {
	case effects.LevelWarn:
		return slog.LevelWarn
	case effects.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
