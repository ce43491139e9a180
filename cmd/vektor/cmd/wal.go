package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vektordb/vektor/internal/wal"
)

func newWALCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wal",
		Short: "Write-ahead log tooling",
	}
	cmd.AddCommand(newWALDumpCmd())
	return cmd
}

func newWALDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <wal-file>",
		Short: "Render a write-ahead log as human-readable records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("cannot access wal file: %w", err)
			}

			log, err := wal.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = log.Close() }()

			if log.Size() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "wal is empty")
				return nil
			}
			return log.Dump(cmd.OutOrStdout())
		},
	}
}
