package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is a CUE configuration file. The remaining fields override
	// the values it (or the defaults) provide when set.
	Config  string
	Source  string
	LogFile string
	Journal string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the userwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "userwatch",
		Short: "userwatch - user records with event observers",
		Long: `Manage a file of user records and notify observers of every change.

Every create, update and delete is committed and then delivered to the
configured observers: an append-only event log, a mail notifier and an
optional SQLite journal.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(opts, cmd)
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Config, "config", "", "path to a CUE configuration file")
	pf.StringVar(&opts.Source, "source", "", "path to the users CSV file (overrides config)")
	pf.StringVar(&opts.LogFile, "log", "", "path to the event log (overrides config)")
	pf.StringVar(&opts.Journal, "journal", "", "path to the SQLite event journal (overrides config)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// setupLogging installs the process logger: text to stderr, debug level
// with --verbose.
func setupLogging(opts *RootOptions, cmd *cobra.Command) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
