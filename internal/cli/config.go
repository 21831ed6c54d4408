package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/userwatch/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after applying the config file and flags.

Examples:
  userwatch config --config ./userwatch.cue
  userwatch config --journal ./events.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			cfg, err := resolveConfig(rootOpts)
			if err != nil {
				return f.Fail("failed to load config", WrapExitError(ExitCommandError, "invalid config", err))
			}
			return f.Success(configView(cfg))
		},
	}
}

// configView renders a Config as aligned key/value lines in text mode.
type configView config.Config

func (c configView) MarshalJSON() ([]byte, error) {
	return json.Marshal(config.Config(c))
}

func (c configView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source:  %s\n", c.Source)
	fmt.Fprintf(&b, "log:     %s\n", c.LogFile)
	journal := c.Journal
	if journal == "" {
		journal = "(none)"
	}
	fmt.Fprintf(&b, "journal: %s\n", journal)
	b.WriteString("subscriptions:")
	for _, s := range c.Subscriptions {
		fmt.Fprintf(&b, "\n  %-8s %s", s.Observer, strings.Join(s.EventsFor(), ", "))
	}
	return b.String()
}
