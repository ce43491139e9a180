package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vektordb/vektor/pkg/vektor"
)

func newCompactCmd() *cobra.Command {
	var dimension int

	cmd := &cobra.Command{
		Use:   "compact <snapshot-file>",
		Short: "Rewrite a snapshot without tombstoned rows",
		Long: `Loads a snapshot, removes tombstoned rows, rebuilds the index with
fresh ordinals, and writes the snapshot back in place.`,
		Args: cobra.ExactArgs(1),
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

			before := db.Stats()
			if err := db.Compact(); err != nil {
				return err
			}
			if err := db.Save(args[0]); err != nil {
				return err
			}

			after := db.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Compacted %s: %d rows -> %d rows (%d tombstones removed)\n",
				args[0], before.Count, after.Count, before.Tombstones)
			return nil
		},
	}

	cmd.Flags().IntVar(&dimension, "dimension", 0, "database dimension (required without --config)")
	return cmd
}

// openSnapshot opens a database from cfg and loads the snapshot into it.
func openSnapshot(cfg *vektor.Config, path string) (*vektor.DB, error) {
	db, err := vektor.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.LoadSnapshot(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
