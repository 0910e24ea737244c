// Package cli contains the cobra commands of the mobi2epub front end.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/mobi2epub/internal/config"
	"github.com/example/mobi2epub/internal/logging"
	"github.com/example/mobi2epub/internal/wire"
)

var (
	current  = &config.Settings{}
	closeLog = func() error { return nil }
)

// RegisterSettingsFlags defines the persistent setting flags on the root command.
func RegisterSettingsFlags(root *cobra.Command) {
	config.RegisterFlags(root.PersistentFlags())
}

// LoadSettings resolves the effective settings, installs the logger and
// configures the service wiring. It is the root PersistentPreRunE.
func LoadSettings(cmd *cobra.Command, args []string) error {
	s, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(logging.Options{
		Debug:   s.Debug,
		LogFile: s.LogFile,
	})
	if err != nil {
		return err
	}
	if s.ConfigFile != "" {
		logger.Debug("loaded settings file", "path", s.ConfigFile)
	}

	current = s
	closeLog = closer
	wire.Configure(s)
	return nil
}

// Shutdown releases the history database and the log file.
func Shutdown() error {
	if err := wire.Close(); err != nil {
		return fmt.Errorf("failed to close history database: %w", err)
	}
	return closeLog()
}
