// Command dsandbox drives the deterministic sandbox rewriter from the
// command line: rewrite individual classes, preload a whole source path
// into the bytecode cache, or report cache statistics, all against one
// YAML sandbox configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsandbox/rewriter/tracelog"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	configPath string
	verbose    bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dsandbox",
		Short:         "Rewrite JVM classes into deterministic sandbox classes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := tracelog.Init(verbose); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			tracelog.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "dsandbox.yaml", "path to the sandbox configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable development-mode (colorized) logging")
	flags.Var(minSeverity, "min-severity", "override the configured minimum diagnostic severity (informational, warning, error)")

	root.AddCommand(newRewriteCommand())
	root.AddCommand(newPreloadCommand())
	root.AddCommand(newCacheStatsCommand())
	return root
}
