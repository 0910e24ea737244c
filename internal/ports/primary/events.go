package primary

import "github.com/example/mobi2epub/internal/core/conversion"

// Event is a message from the core to the presentation layer.
// The concrete types are LogEvent, ProgressEvent and FinishedEvent.
type Event interface {
	EventType() string
}

// LogEvent carries one user-visible log line.
type LogEvent struct {
	Level string // effects.LevelInfo, LevelSuccess, LevelWarn, LevelError
	Text  string
}

func (e LogEvent) EventType() string { return "log" }

// ProgressEvent is published after every processed request.
type ProgressEvent struct {
	Current int
	Total   int
}

func (e ProgressEvent) EventType() string { return "progress" }

// FinishedEvent is published exactly once when a batch run ends.
type FinishedEvent struct {
	Summary conversion.Summary
}

func (e FinishedEvent) EventType() string { return "finished" }
