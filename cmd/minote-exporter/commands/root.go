// Package commands holds the exporter's CLI surface.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"minote-exporter/lib/telemetry"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "minote-exporter",
	Short: "Export notes out of Mi Cloud and convert them to JSON",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
