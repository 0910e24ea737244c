// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Log levels carried by LogEffect.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarn    = "warn"
	LevelError   = "error"
)

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a user-visible log line.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// FileEffect represents a file system operation.
type FileEffect struct {
	Operation string // "remove"
	Path      string
}

func (e FileEffect) EffectType() string { return "file" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }

// Info is shorthand for an info-level LogEffect.
func Info(msg string) LogEffect { return LogEffect{Level: LevelInfo, Message: msg} }

// Success is shorthand for a success-level LogEffect.
func Success(msg string) LogEffect { return LogEffect{Level: LevelSuccess, Message: msg} }

// Warn is shorthand for a warn-level LogEffect.
func Warn(msg string) LogEffect { return LogEffect{Level: LevelWarn, Message: msg} }

// Error is shorthand for an error-level LogEffect.
func Error(msg string) LogEffect { return LogEffect{Level: LevelError, Message: msg} }
