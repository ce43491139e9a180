package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	var dimension int

	cmd := &cobra.Command{
		Use:   "info <snapshot-file>",
		Short: "Report statistics for a database snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dimension)
			if err != nil {
				return err
			}

			db, err := openSnapshot(cfg, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			stats := db.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot:    %s\n", args[0])
			fmt.Fprintf(out, "Index type:  %s\n", stats.IndexType)
			fmt.Fprintf(out, "Dimension:   %d\n", stats.Dimension)
			fmt.Fprintf(out, "Rows:        %d\n", stats.Count)
			fmt.Fprintf(out, "Live rows:   %d\n", stats.LiveCount)
			fmt.Fprintf(out, "Tombstones:  %d\n", stats.Tombstones)
			return nil
		},
	}

	cmd.Flags().IntVar(&dimension, "dimension", 0, "database dimension (required without --config)")
	return cmd
}
