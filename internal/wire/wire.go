// Package wire provides dependency injection for the mobi2epub application.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	cliadapter "github.com/example/mobi2epub/internal/adapters/cli"
	"github.com/example/mobi2epub/internal/adapters/calibre"
	"github.com/example/mobi2epub/internal/adapters/filesystem"
	"github.com/example/mobi2epub/internal/adapters/sqlite"
	"github.com/example/mobi2epub/internal/app"
	"github.com/example/mobi2epub/internal/config"
	"github.com/example/mobi2epub/internal/db"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/ports/secondary"
)

// ErrHistoryDisabled is returned by HistoryRepository when no database is configured.
var ErrHistoryDisabled = errors.New("run history is disabled; set --history-db or MOBI2EPUB_HISTORY_DB")

var (
	settings         = &config.Settings{}
	converterService primary.ConverterService
	historyRepo      secondary.HistoryRepository
	historyErr       error
	database         *sql.DB
	once             sync.Once
	historyOnce      sync.Once
)

// Configure sets the settings the services are built from.
// It must be called before the first service is requested.
func Configure(s *config.Settings) {
	settings = s
}

// ConverterService returns the singleton ConverterService instance.
func ConverterService() primary.ConverterService {
	once.Do(initServices)
	return converterService
}

// HistoryRepository returns the run history ledger, opening it on first use.
func HistoryRepository() (secondary.HistoryRepository, error) {
	historyOnce.Do(initHistory)
	return historyRepo, historyErr
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	logger := slog.Default()

	// A broken history database never blocks conversion.
	var history secondary.HistoryRepository
	if settings.HistoryDB != "" {
		repo, err := HistoryRepository()
		if err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			history = repo
		}
	}

	// Create adapters (secondary ports)
	fs := filesystem.NewLibraryAdapter()
	runner := calibre.NewRunner()
	events := app.NewEventQueue()

	// Create effect executor and driver
	executor := app.NewEffectExecutor(fs, events, logger)
	driver := app.NewBatchDriver(runner, app.NewOutputResolver(fs), executor, events, history, logger)

	// Create services (primary ports implementation)
	converterService = app.NewConverterService(fs, runner, driver, events, logger)
}

func initHistory() {
	if settings.HistoryDB == "" {
		historyErr = ErrHistoryDisabled
		return
	}
	conn, err := db.Open(settings.HistoryDB)
	if err != nil {
		historyErr = fmt.Errorf("failed to open history database: %w", err)
		return
	}
	database = conn
	historyRepo = sqlite.NewHistoryRepository(conn)
}

// Close releases the history database, if it was opened.
func Close() error {
	if database != nil {
		return database.Close()
	}
	return nil
}

// BatchAdapter returns a new BatchAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func BatchAdapter() *cliadapter.BatchAdapter {
	return BatchAdapterWithOutput(os.Stdout)
}

// BatchAdapterWithOutput returns a new BatchAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func BatchAdapterWithOutput(out io.Writer) *cliadapter.BatchAdapter {
	return cliadapter.NewBatchAdapter(ConverterService(), out)
}
