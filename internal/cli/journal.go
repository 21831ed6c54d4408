package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/userwatch/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Event    string
	EntityID string
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled events",
		Long: `List the events recorded by the journal observer, oldest first.

The journal path comes from --journal or the configuration file.

Examples:
  userwatch journal --journal ./events.db
  userwatch journal --journal ./events.db --event entity:deleted
  userwatch journal --journal ./events.db --id 2 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "", "only events with this name")
	cmd.Flags().StringVar(&opts.EntityID, "id", "", "only events about this user id")

	return cmd
}

// entryList renders journal entries one per line in text mode.
type entryList []journal.Entry

func (l entryList) String() string {
	if len(l) == 0 {
		return "No events."
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = fmt.Sprintf("%6d  %-15s %-8s %s", e.Seq, e.Name, e.EntityID, e.Payload)
	}
	return strings.Join(lines, "\n")
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts.RootOptions)
	if err != nil {
		return f.Fail("failed to load config", WrapExitError(ExitCommandError, "invalid config", err))
	}
	if cfg.Journal == "" {
		return f.Fail("no journal", NewExitError(ExitCommandError, "no journal path: use --journal or set journal in the config file"))
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return f.Fail("failed to open journal", WrapExitError(ExitCommandError, cfg.Journal, err))
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), journal.Filter{Name: opts.Event, EntityID: opts.EntityID})
	if err != nil {
		return f.Fail("failed to list journal", err)
	}
	return f.Success(entryList(entries))
}
