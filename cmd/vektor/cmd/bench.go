package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/vektordb/vektor/pkg/vektor"
)

func newBenchCmd() *cobra.Command {
	var (
		dimension int
		rows      int
		queries   int
		k         int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Insert random vectors and measure search latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dimension)
			if err != nil {
				return err
			}
			cfg.Database.ExactSearchThreshold = 0

			db, err := vektor.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			randomVector := func() []float32 {
				v := make([]float32, cfg.Database.Dimension)
				for d := range v {
					v[d] = rng.Float32()*2 - 1
				}
				return v
			}

			out := cmd.OutOrStdout()

			insertStart := time.Now()
			for i := 0; i < rows; i++ {
				if _, err := db.Add(randomVector(), nil); err != nil {
					return err
				}
			}
			insertDur := time.Since(insertStart)
			fmt.Fprintf(out, "Inserted %d x %d-dim vectors in %v (%.0f/s)\n",
				rows, cfg.Database.Dimension, insertDur.Round(time.Millisecond),
				float64(rows)/insertDur.Seconds())

			searchStart := time.Now()
			for i := 0; i < queries; i++ {
				if _, err := db.Search(randomVector(), k); err != nil {
					return err
				}
			}
			searchDur := time.Since(searchStart)
			fmt.Fprintf(out, "Ran %d k=%d searches in %v (%.2fms avg)\n",
				queries, k, searchDur.Round(time.Millisecond),
				float64(searchDur.Milliseconds())/float64(queries))
			return nil
		},
	}

	cmd.Flags().IntVar(&dimension, "dimension", 128, "vector dimension")
	cmd.Flags().IntVar(&rows, "rows", 10000, "vectors to insert")
	cmd.Flags().IntVar(&queries, "queries", 1000, "searches to run")
	cmd.Flags().IntVar(&k, "k", 10, "neighbors per search")
	return cmd
}
