package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/consteval/intrinsic"
	"github.com/wippyai/consteval/script"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Format  string // "text" | "json"
	Verbose bool
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "consteval",
		Short: "Compile-time intrinsic evaluator",
		Long: `Evaluate compiler intrinsics over a simulated memory arena.

Scenarios are YAML files describing calls into the intrinsic engine
together with the constant each one is expected to produce.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return newExitError(exitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats))
			}
			if opts.Verbose {
				log, err := zap.NewDevelopment()
				if err != nil {
					return wrapExitError(exitCommandError, "failed to create logger", err)
				}
				intrinsic.SetLogger(log)
				script.SetLogger(log)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every dispatch to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "consteval %s\n", version)
		},
	}
}
