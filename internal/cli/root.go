// Package cli implements the restack command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "restack",
	Short: "Conversion job orchestration engine",
	Long: `restack drives source-tree conversion plans: it resolves task
dependencies into concurrency-bounded batches, executes each task against
an external provider with retry and error classification, and tracks job
lifecycle with pause, resume, and cancel.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default restack.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}
