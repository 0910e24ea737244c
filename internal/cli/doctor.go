package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/example/mobi2epub/internal/adapters/calibre"
	"github.com/example/mobi2epub/internal/config"
	"github.com/example/mobi2epub/internal/core/conversion"
	"github.com/example/mobi2epub/internal/ports/secondary"
	"github.com/example/mobi2epub/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the conversion environment",
		Long: `Health check for mobi2epub.

Validates:
- Calibre ebook-convert is installed and on PATH
- Effective settings (flags, environment, settings file)
- Run history database, when enabled

Examples:
  mobi2epub doctor              # Run full health check
  mobi2epub doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []CheckResult{
				checkConverter(calibre.NewRunner().LookPath, current.Converter, runtime.GOOS),
				checkSettings(current),
				checkHistory(cmd.Context(), current.HistoryDB, wire.HistoryRepository),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				out := cmd.OutOrStdout()
				// Print compact table
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Check              Status")
				fmt.Fprintln(out, "─────────────────────────")
				for _, r := range results {
					fmt.Fprintf(out, "%-18s %s\n", r.Name, r.Status)
				}
				fmt.Fprintln(out)

				// Print details for non-passing checks
				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Fprintln(out, "Details:")
							hasDetails = true
						}
						fmt.Fprintf(out, "\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Fprintln(out, "\n⚠ Issues found.")
				} else {
					fmt.Fprintln(out, "All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkConverter verifies the converter command resolves to an executable.
func checkConverter(lookPath func(string) (string, error), name, goos string) CheckResult {
	if _, err := lookPath(name); err != nil {
		return CheckResult{
			Name:    "Converter",
			Status:  "✗",
			Details: fmt.Sprintf("  %s not found\n  %s", name, conversion.InstallHint(goos)),
		}
	}
	return CheckResult{Name: "Converter", Status: "✓"}
}

// checkSettings reports every invalid effective setting.
func checkSettings(s *config.Settings) CheckResult {
	err := s.Validate()
	if err == nil {
		return CheckResult{Name: "Settings", Status: "✓"}
	}

	var lines []string
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			lines = append(lines, "  "+e.Error())
		}
	} else {
		lines = append(lines, "  "+err.Error())
	}
	return CheckResult{Name: "Settings", Status: "✗", Details: strings.Join(lines, "\n")}
}

// checkHistory opens the run history database and reads from it.
// A disabled history passes.
func checkHistory(ctx context.Context, path string, open func() (secondary.HistoryRepository, error)) CheckResult {
	if path == "" {
		return CheckResult{Name: "History", Status: "✓"}
	}
	repo, err := open()
	if err != nil {
		return CheckResult{Name: "History", Status: "✗", Details: "  " + err.Error()}
	}
	if _, err := repo.ListRuns(ctx, 1); err != nil {
		return CheckResult{Name: "History", Status: "⚠", Details: fmt.Sprintf("  %s is not readable: %v", path, err)}
	}
	return CheckResult{Name: "History", Status: "✓"}
}
