package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/consteval/intrinsic"
	"github.com/wippyai/consteval/script"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	MaxDepth   int
	Budget     int64
	ArenaLimit uint64
}

// runReport is the JSON form of a run.
type runReport struct {
	Results []script.Summary `json:"results"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	defaults := intrinsic.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run <scenarios.yaml>...",
		Short: "Evaluate scenario files",
		Long: `Evaluate every scenario in the given files, in order.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - a file could not be loaded

Examples:
  consteval run testdata/properties.yaml
  consteval run --budget 100 --format json errors.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", defaults.MaxDepth, "maximum nesting of intrinsic calls")
	cmd.Flags().Int64Var(&opts.Budget, "budget", defaults.Budget, "evaluation steps allowed per scenario")
	cmd.Flags().Uint64Var(&opts.ArenaLimit, "arena-limit", defaults.ArenaLimit, "bytes of live allocations allowed per scenario")

	return cmd
}

func runScenarios(opts *runOptions, files []string, w io.Writer) error {
	var scenarios []*script.Scenario
	for _, path := range files {
		s, err := script.LoadFile(path)
		if err != nil {
			return wrapExitError(exitCommandError, "failed to load scenarios", err)
		}
		scenarios = append(scenarios, s...)
	}

	cfg := intrinsic.DefaultConfig()
	cfg.MaxDepth = opts.MaxDepth
	cfg.Budget = opts.Budget
	cfg.ArenaLimit = opts.ArenaLimit

	results := script.NewRunner(intrinsic.NewDispatcher(), cfg).RunAll(scenarios)
	failed := script.Failed(results)

	if opts.Format == "json" {
		report := runReport{
			Results: make([]script.Summary, len(results)),
			Passed:  len(results) - failed,
			Failed:  failed,
		}
		for i, r := range results {
			report.Results[i] = r.Summary()
		}
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else {
		st := newStyler(w)
		for _, r := range results {
			line := r.String()
			if r.Passed {
				line = st.render(passStyle, line)
			} else {
				line = st.render(failStyle, line)
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w, st.render(dimStyle, fmt.Sprintf("%d passed, %d failed", len(results)-failed, failed)))
	}

	if failed > 0 {
		return newExitError(exitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(results)))
	}
	return nil
}
