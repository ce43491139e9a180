// Package cmd implements the vektor operator CLI: WAL inspection,
// snapshot info, synchronous compaction, and a micro-benchmark. The
// engine itself is configured programmatically; this surface exists for
// operators poking at databases on disk.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vektordb/vektor/pkg/vektor"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vektor",
		Short: "Operator tooling for vektor databases",
		Long: `vektor is the operator CLI for the vektor embeddable vector
database engine. It inspects write-ahead logs, reports snapshot
statistics, runs synchronous compaction, and benchmarks an index
configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a vektor YAML configuration")

	root.AddCommand(newWALCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newBenchCmd())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads the --config file or falls back to defaults for the
// given dimension.
func loadConfig(fallbackDim int) (*vektor.Config, error) {
	if configPath != "" {
		return vektor.LoadConfig(configPath)
	}
	cfg := vektor.DefaultConfig(fallbackDim)
	cfg.Compaction.Enabled = false
	return cfg, nil
}
