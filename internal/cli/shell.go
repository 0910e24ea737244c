package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/mobi2epub/internal/adapters/cli"
	"github.com/example/mobi2epub/internal/ports/primary"
	"github.com/example/mobi2epub/internal/wire"
)

const shellHelp = `Commands:
  add PATH...      queue MOBI files or folders
  list             show the queue
  remove PATH...   drop files from the queue
  clear            empty the queue
  start            convert the queued files
  cancel           stop after the current step
  errors           show the failure report of the last run
  status           show whether a conversion is running
  help             show this help
  quit             leave the shell`

// ShellCmd returns the interactive controller command.
func ShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive queue and conversion controller",
		Long: `Manage a conversion queue interactively.

Files can be added while a conversion runs; they wait for the next start.
Ctrl-C cancels the running conversion, or leaves the shell when idle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt)
			defer signal.Stop(sigs)

			session := newShellSession(wire.ConverterService(), cmd.OutOrStdout(), current.Batch)
			return session.run(cmd.Context(), cmd.InOrStdin(), sigs)
		},
	}
}

// shellSession multiplexes input lines, event polling and signals in one goroutine.
type shellSession struct {
	service      primary.ConverterService
	adapter      *cliadapter.BatchAdapter
	out          io.Writer
	settings     func() primary.BatchSettings
	pollInterval time.Duration
}

func newShellSession(service primary.ConverterService, out io.Writer, settings func() primary.BatchSettings) *shellSession {
	return &shellSession{
		service:      service,
		adapter:      cliadapter.NewBatchAdapter(service, out),
		out:          out,
		settings:     settings,
		pollInterval: cliadapter.EventPollInterval,
	}
}

func (s *shellSession) run(ctx context.Context, in io.Reader, sigs <-chan os.Signal) error {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	fmt.Fprintln(s.out, "mobi2epub shell. Type 'help' for commands.")
	s.prompt()
	for {
		select {
		case <-ctx.Done():
			s.quit()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.quit()
				return nil
			}
			if s.execute(ctx, line) {
				return nil
			}
			s.prompt()
		case <-ticker.C:
			s.adapter.Flush()
		case <-sigs:
			if !s.service.IsRunning() {
				fmt.Fprintln(s.out)
				return nil
			}
			fmt.Fprintln(s.out)
			s.adapter.Cancel()
		}
	}
}

func (s *shellSession) prompt() {
	fmt.Fprint(s.out, "> ")
}

// execute runs one command line and reports whether the shell should exit.
func (s *shellSession) execute(ctx context.Context, line string) bool {
	fields, err := splitArgs(line)
	if err != nil {
		s.adapter.RenderError(err)
		return false
	}
	if len(fields) == 0 {
		return false
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "add":
		if len(args) == 0 {
			fmt.Fprintln(s.out, "Usage: add PATH...")
			return false
		}
		if _, err := s.adapter.Add(ctx, args); err != nil {
			s.adapter.RenderError(err)
		}
	case "list", "ls":
		s.adapter.List()
	case "remove", "rm":
		if len(args) == 0 {
			fmt.Fprintln(s.out, "Usage: remove PATH...")
			return false
		}
		if _, err := s.adapter.Remove(ctx, args); err != nil {
			s.adapter.RenderError(err)
		}
	case "clear":
		if _, err := s.adapter.Clear(ctx); err != nil {
			s.adapter.RenderError(err)
		}
	case "start":
		if _, err := s.adapter.Start(ctx, s.settings()); err != nil {
			s.adapter.Flush()
			s.adapter.RenderError(err)
		}
	case "cancel":
		s.adapter.Cancel()
	case "errors":
		s.adapter.ShowErrors()
	case "status":
		s.adapter.Flush()
		s.adapter.Status()
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "quit", "exit":
		s.quit()
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help')\n", name)
	}
	return false
}

// quit stops a running conversion and waits for it to report back.
func (s *shellSession) quit() {
	if !s.service.IsRunning() {
		return
	}
	s.service.Cancel()
	s.adapter.Watch(context.Background())
}

// splitArgs splits a command line on whitespace. Single or double quotes
// group words so paths containing spaces can be typed.
func splitArgs(line string) ([]string, error) {
	var (
		args   []string
		word   strings.Builder
		quote  rune
		inWord bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in: %s", line)
	}
	if inWord {
		args = append(args, word.String())
	}
	return args, nil
}
