package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/mobi2epub/internal/wire"
)

// ErrCancelled is returned when a conversion run was stopped by the user.
var ErrCancelled = errors.New("conversion cancelled")

// ConvertCmd returns the one-shot batch conversion command.
func ConvertCmd() *cobra.Command {
	var errorsFile string

	cmd := &cobra.Command{
		Use:   "convert PATH...",
		Short: "Convert MOBI files to EPUB",
		Long: `Queue the given MOBI files and folders, then convert them one at a time.

Folders are searched recursively for .mobi files. Press Ctrl-C to stop
after the current step; the file being converted is reported as cancelled.

Examples:
  mobi2epub convert book.mobi
  mobi2epub convert ~/Books --existing rename --output-dir ~/EPUB
  mobi2epub convert ~/Books --errors-file errors.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			adapter := wire.BatchAdapterWithOutput(cmd.OutOrStdout())
			if _, err := adapter.Add(ctx, args); err != nil {
				adapter.RenderError(err)
			}

			if _, err := adapter.Start(ctx, current.Batch()); err != nil {
				adapter.Flush()
				adapter.RenderError(err)
				return fmt.Errorf("conversion not started")
			}

			summary := adapter.Watch(ctx)

			if errorsFile != "" {
				if err := adapter.WriteErrors(errorsFile); err != nil {
					return err
				}
			}

			if summary.Cancelled {
				return ErrCancelled
			}
			if n := len(summary.Failures); n > 0 {
				return fmt.Errorf("%d file(s) failed to convert", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&errorsFile, "errors-file", "", "write the failure report of the run to this file")

	return cmd
}
