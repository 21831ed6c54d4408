package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/userwatch/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
	Trace  bool   // print each scenario's trace in text mode
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string                `json:"name"`
	Pass   bool                  `json:"pass"`
	Errors []string              `json:"errors,omitempty"`
	Trace  []scenario.TraceEvent `json:"trace,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>...",
		Short: "Run observer scenarios",
		Long: `Run scripted scenarios against an in-memory store.

Each scenario attaches recording observers, loads its seed, performs its
steps and checks its assertions. Identifiers are allocated as id-1, id-2,
... so traces are reproducible. The users file and observers configured
for the other commands are not touched.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  userwatch run ./scenarios
  userwatch run ./scenarios/mail.yaml --trace
  userwatch run ./scenarios --filter "mail*" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the delivery trace of each scenario")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	var files []string
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", p))
		}
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := runScenario(file, opts, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	var err error
	if opts.Format == "json" {
		err = outputRunJSON(cmd, result)
	} else {
		err = outputRunText(cmd, result)
	}
	if err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file below it when it is a directory.
func findScenarioFiles(path string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario file.
func runScenario(file string, opts *RunOptions, cmd *cobra.Command) ScenarioResult {
	s, err := scenario.Load(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	res, err := scenario.Run(s)
	sr := ScenarioResult{Name: s.Name}
	if res != nil {
		sr.Trace = res.Trace
		for _, e := range res.Errors {
			sr.Errors = append(sr.Errors, e.Error())
		}
	}
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("execution failed: %v", err))
	}
	sr.Pass = len(sr.Errors) == 0

	if opts.Trace && opts.Format != "json" && res != nil {
		if out, err := scenario.Render(s.Name, res); err == nil {
			cmd.OutOrStdout().Write(out)
		} else {
			sr.Errors = append(sr.Errors, fmt.Sprintf("render trace: %v", err))
			sr.Pass = false
		}
	}
	return sr
}

func outputRunJSON(cmd *cobra.Command, result RunResult) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{
		Status: "ok",
		Data:   result,
	})
}

func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return nil
}
