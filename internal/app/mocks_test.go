package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// ============================================================================
// Mock FileSystem
// ============================================================================

var _ secondary.FileSystem = (*mockFileSystem)(nil)

// mockFileSystem is an in-memory library rooted at /work.
type mockFileSystem struct {
	mu        sync.Mutex
	files     map[string]bool
	dirs      map[string]bool
	walk      map[string][]string
	listErr   error
	removeErr error
	removed   []string
}

func newMockFileSystem() *mockFileSystem {
	return &mockFileSystem{
		files: make(map[string]bool),
		dirs:  map[string]bool{"/work": true},
		walk:  make(map[string][]string),
	}
}

func (m *mockFileSystem) addFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = true
}

func (m *mockFileSystem) Abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Join("/work", path), nil
}

func (m *mockFileSystem) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path] || m.dirs[path]
}

func (m *mockFileSystem) IsDir(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[path]
}

func (m *mockFileSystem) IsFile(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path]
}

func (m *mockFileSystem) ListNames(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var names []string
	for p := range m.files {
		if filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	return names, nil
}

func (m *mockFileSystem) WalkSources(root string) ([]string, error) {
	return m.walk[root], nil
}

func (m *mockFileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

func (m *mockFileSystem) removedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

// ============================================================================
// Mock ConverterRunner / Process
// ============================================================================

var _ secondary.ConverterRunner = (*mockRunner)(nil)

// mockRunner starts scripted processes. script is called with the attempt
// number (starting at 1) and the argv.
type mockRunner struct {
	mu          sync.Mutex
	lookPathErr error
	script      func(n int, args []string) (*mockProcess, error)
	calls       [][]string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		script: func(n int, args []string) (*mockProcess, error) {
			return exitWith(secondary.RunResult{ExitCode: 0}), nil
		},
	}
}

func (m *mockRunner) LookPath(command string) (string, error) {
	if m.lookPathErr != nil {
		return "", m.lookPathErr
	}
	return "/usr/bin/" + command, nil
}

func (m *mockRunner) Start(ctx context.Context, args []string) (secondary.Process, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), args...))
	n := len(m.calls)
	m.mu.Unlock()

	proc, err := m.script(n, args)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func (m *mockRunner) startCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

var _ secondary.Process = (*mockProcess)(nil)

// mockProcess returns result immediately, or blocks until terminated when blocking.
type mockProcess struct {
	result     secondary.RunResult
	blocking   bool
	started    chan struct{}
	released   chan struct{}
	once       sync.Once
	mu         sync.Mutex
	terminated bool
}

func exitWith(result secondary.RunResult) *mockProcess {
	return &mockProcess{result: result, started: make(chan struct{}), released: make(chan struct{})}
}

// blockUntilTerminated returns a process that runs until Terminate is called
// and then reports a signal exit.
func blockUntilTerminated() *mockProcess {
	p := exitWith(secondary.RunResult{ExitCode: -1, Stderr: "Terminated"})
	p.blocking = true
	return p
}

func (p *mockProcess) Wait(timeout time.Duration) secondary.RunResult {
	close(p.started)
	if p.blocking {
		<-p.released
	}
	return p.result
}

func (p *mockProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.released) })
	return nil
}

func (p *mockProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// ============================================================================
// Mock HistoryRepository
// ============================================================================

var _ secondary.HistoryRepository = (*mockHistoryRepository)(nil)

type mockHistoryRepository struct {
	mu        sync.Mutex
	runs      []*secondary.RunRecord
	recordErr error
}

func (m *mockHistoryRepository) RecordRun(ctx context.Context, run *secondary.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockHistoryRepository) ListRuns(ctx context.Context, limit int) ([]*secondary.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs, nil
}

func (m *mockHistoryRepository) GetRun(ctx context.Context, id string) (*secondary.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockHistoryRepository) recorded() []*secondary.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*secondary.RunRecord(nil), m.runs...)
}

// ============================================================================
// Test Helper
// ============================================================================

type testHarness struct {
	service *ConverterServiceImpl
	fs      *mockFileSystem
	runner  *mockRunner
	history *mockHistoryRepository
	events  *EventQueue
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConverterService() *testHarness {
	fs := newMockFileSystem()
	runner := newMockRunner()
	history := &mockHistoryRepository{}
	events := NewEventQueue()
	logger := discardLogger()

	executor := NewEffectExecutor(fs, events, logger)
	driver := NewBatchDriver(runner, NewOutputResolver(fs), executor, events, history, logger)
	service := NewConverterService(fs, runner, driver, events, logger)

	ids := 0
	service.newID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	return &testHarness{service: service, fs: fs, runner: runner, history: history, events: events}
}

func defaultSettings() primary.BatchSettings {
	return primary.BatchSettings{
		ExistingPolicy: conversion.PolicySkip,
		FailurePolicy:  conversion.KeepFailed,
		TimeoutSeconds: conversion.DefaultTimeoutSeconds,
		Converter:      conversion.DefaultConverterCommand,
	}
}

// queueFiles creates the given sources in the mock filesystem and enqueues them.
func (h *testHarness) queueFiles(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		h.fs.addFile(p)
		if _, err := h.service.Enqueue(context.Background(), p); err != nil {
			t.Fatalf("Enqueue(%q) failed: %v", p, err)
		}
	}
	h.service.DrainEvents()
}

// waitForFinish drains events until the FinishedEvent arrives and returns
// everything drained along with the summary.
func waitForFinish(t *testing.T, svc primary.ConverterService) ([]primary.Event, conversion.Summary) {
	t.Helper()
	var all []primary.Event
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range svc.DrainEvents() {
			all = append(all, ev)
			if fin, ok := ev.(primary.FinishedEvent); ok {
				return all, fin.Summary
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for FinishedEvent")
	return nil, conversion.Summary{}
}

func logTexts(evs []primary.Event) []string {
	var texts []string
	for _, ev := range evs {
		if l, ok := ev.(primary.LogEvent); ok {
			texts = append(texts, l.Text)
		}
	}
	return texts
}

func containsText(texts []string, want string) bool {
	for _, t := range texts {
		if t == want {
			return true
		}
	}
	return false
}

func waitStarted(t *testing.T, p *mockProcess) {
	t.Helper()
	select {
	case <-p.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for converter process to start")
	}
}
