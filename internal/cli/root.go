// Package cli implements the gradbridge command line.
package cli

import (
	"flag"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// Version is the gradbridge release.
const Version = "v0.1.0-dev"

// verboseLevel is the klog verbosity enabled by --verbose. Bridge calls log at this level.
const verboseLevel = "4"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gradbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gradbridge",
		Short: "gradbridge - custom gradients for opaque evaluators",
		Long: `Run recorded evaluator cases through the gradient bridge.

A case file holds the arguments, result and Jacobian of one evaluation.
vjp prints the argument gradients; check runs the same case through the
autodiff tape and compares the two.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				return enableVerboseLogging()
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewVJPCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func enableVerboseLogging() error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	return fs.Set("v", verboseLevel)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
