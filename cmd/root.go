package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verboseFlag bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tsreduce",
	Short: "A parallel, tree-sitter-aware test-case minimizer",
	Long: `tsreduce shrinks a directory tree against an interestingness test,
using a pool of sandboxed workers and a mix of line-based and
tree-sitter-structural reduction passes.

Features:
- Parallel worker pool, each with its own sandboxed copy of the tree
- Dichotomy-style passes that try the largest reduction first
- Periodic snapshots and resumable runs
- Graceful interrupt handling with an escalating cancel signal`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(runCmd)
}
