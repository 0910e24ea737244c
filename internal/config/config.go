// Package config loads the layered converter settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/primary"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "MOBI2EPUB"

// FileName is the base name of the optional, read-only settings file.
const FileName = "mobi2epub"

// Setting keys.
const (
	KeyExistingPolicy = "existing_policy"
	KeyFailurePolicy  = "failure_policy"
	KeyTimeoutSeconds = "timeout_seconds"
	KeyDeleteSource   = "delete_source"
	KeyOutputDir      = "output_dir"
	KeyConverter      = "converter"
	KeyHistoryDB      = "history_db"
	KeyLogFile        = "log_file"
	KeyDebug          = "debug"
)

// flagNames maps setting keys to their command-line flags.
var flagNames = map[string]string{
	KeyExistingPolicy: "existing",
	KeyFailurePolicy:  "on-failure",
	KeyTimeoutSeconds: "timeout",
	KeyDeleteSource:   "delete-source",
	KeyOutputDir:      "output-dir",
	KeyConverter:      "converter",
	KeyHistoryDB:      "history-db",
	KeyLogFile:        "log-file",
	KeyDebug:          "debug",
}

// Settings represents the effective converter configuration.
type Settings struct {
	ExistingPolicy conversion.ExistingPolicy
	FailurePolicy  conversion.FailurePolicy
	TimeoutSeconds int
	DeleteSource   bool
	OutputDir      string // absolute, or empty for "next to the source"
	Converter      string
	HistoryDB      string // empty disables run history
	LogFile        string // empty disables the JSON log file
	Debug          bool

	// ConfigFile is the settings file that was read, if any.
	ConfigFile string
}

// RegisterFlags defines the setting flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagNames[KeyExistingPolicy], string(conversion.PolicySkip), "when the EPUB exists: skip, overwrite or rename")
	fs.String(flagNames[KeyFailurePolicy], string(conversion.KeepFailed), "after a run: keep-failed or remove-failed")
	fs.Int(flagNames[KeyTimeoutSeconds], conversion.DefaultTimeoutSeconds, "per-file timeout in seconds (30-7200)")
	fs.Bool(flagNames[KeyDeleteSource], false, "delete the MOBI after a successful conversion")
	fs.String(flagNames[KeyOutputDir], "", "write EPUBs to this folder instead of next to each MOBI")
	fs.String(flagNames[KeyConverter], conversion.DefaultConverterCommand, "converter command")
	fs.String(flagNames[KeyHistoryDB], "", "record finished runs in this SQLite database")
	fs.String(flagNames[KeyLogFile], "", "append JSON diagnostics to this file")
	fs.Bool(flagNames[KeyDebug], false, "enable debug diagnostics")
}

// Load reads settings with the precedence flag > environment > file > default.
// Environment variables use the prefix "MOBI2EPUB", e.g. MOBI2EPUB_TIMEOUT_SECONDS.
// The settings file is mobi2epub.yaml in the working directory or in
// ~/.config/mobi2epub/. It is never written.
//
// Every malformed value is reported together in one error.
func Load(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", FileName))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for key, name := range flagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyExistingPolicy, string(conversion.PolicySkip))
	v.SetDefault(KeyFailurePolicy, string(conversion.KeepFailed))
	v.SetDefault(KeyTimeoutSeconds, strconv.Itoa(conversion.DefaultTimeoutSeconds))
	v.SetDefault(KeyDeleteSource, false)
	v.SetDefault(KeyOutputDir, "")
	v.SetDefault(KeyConverter, conversion.DefaultConverterCommand)
	v.SetDefault(KeyHistoryDB, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyDebug, false)
}

func fromViper(v *viper.Viper) (*Settings, error) {
	var merr *multierror.Error

	s := &Settings{
		DeleteSource: v.GetBool(KeyDeleteSource),
		Converter:    strings.TrimSpace(v.GetString(KeyConverter)),
		HistoryDB:    expandHome(strings.TrimSpace(v.GetString(KeyHistoryDB))),
		LogFile:      expandHome(strings.TrimSpace(v.GetString(KeyLogFile))),
		Debug:        v.GetBool(KeyDebug),
		ConfigFile:   v.ConfigFileUsed(),
	}

	existing, err := conversion.ParseExistingPolicy(v.GetString(KeyExistingPolicy))
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	s.ExistingPolicy = existing

	failure, err := conversion.ParseFailurePolicy(v.GetString(KeyFailurePolicy))
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	s.FailurePolicy = failure

	timeout, err := ParseTimeout(v.GetString(KeyTimeoutSeconds))
	if err != nil {
		merr = multierror.Append(merr, err)
	}
	s.TimeoutSeconds = timeout

	if dir := strings.TrimSpace(v.GetString(KeyOutputDir)); dir != "" {
		abs, err := filepath.Abs(expandHome(dir))
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("invalid output folder %q: %w", dir, err))
		}
		s.OutputDir = abs
	}

	if s.Converter == "" {
		s.Converter = conversion.DefaultConverterCommand
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseTimeout parses a timeout given as whole seconds.
// The range is checked by Validate and again before every batch run.
func ParseTimeout(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.New("Timeout must be a whole number of seconds.")
	}
	return n, nil
}

// Validate checks the settings that can be wrong even when well-formed.
func (s *Settings) Validate() error {
	var merr *multierror.Error
	if r := conversion.CheckTimeout(s.TimeoutSeconds); !r.Allowed {
		merr = multierror.Append(merr, r.Error())
	}
	if s.OutputDir != "" {
		if info, err := os.Stat(s.OutputDir); err != nil || !info.IsDir() {
			merr = multierror.Append(merr, fmt.Errorf("Selected output folder does not exist: %s", s.OutputDir))
		}
	}
	return merr.ErrorOrNil()
}

// Batch returns the per-run options for the converter service.
func (s *Settings) Batch() primary.BatchSettings {
	return primary.BatchSettings{
		ExistingPolicy: s.ExistingPolicy,
		FailurePolicy:  s.FailurePolicy,
		TimeoutSeconds: s.TimeoutSeconds,
		DeleteSource:   s.DeleteSource,
		OutputDir:      s.OutputDir,
		Converter:      s.Converter,
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
