package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/mobi2epub/internal/cli"
	"github.com/example/mobi2epub/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "mobi2epub",
		Short:   "Batch-convert MOBI e-books to EPUB with Calibre",
		Version: version.String(),
		Long: `mobi2epub queues MOBI files and converts them to EPUB one at a time
using Calibre's ebook-convert.

Settings are read from flags, MOBI2EPUB_* environment variables and an
optional mobi2epub.yaml, in that order of precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.LoadSettings,
	}
	cli.RegisterSettingsFlags(rootCmd)

	rootCmd.AddCommand(cli.ConvertCmd())
	rootCmd.AddCommand(cli.ShellCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.HistoryCmd())

	err := rootCmd.ExecuteContext(context.Background())
	if cerr := cli.Shutdown(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
