package database

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_ConcurrentReadersAndWriters(t *testing.T) {
	// Given: a database with some seed rows
	db := openTest(t, testConfig(t, 4))
	for i := 0; i < 50; i++ {
		_, err := db.Add([]float32{float32(i), 0, 0, 0}, nil)
		require.NoError(t, err)
	}

	// When: writers insert and delete while readers search
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ord, err := db.Add([]float32{float32(base*1000 + i), 1, 0, 0}, nil)
				assert.NoError(t, err)
				if i%3 == 0 {
					assert.NoError(t, db.Delete(ord))
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				results, err := db.Search([]float32{float32(i), 0, 0, 0}, 5)
				assert.NoError(t, err)
				// Every emitted ordinal is within the current row count
				for _, res := range results {
					assert.Less(t, res.Ordinal, db.Count())
				}
			}
		}()
	}
	wg.Wait()

	// Then: counters are consistent
	stats := db.Stats()
	assert.Equal(t, stats.Count-stats.Tombstones, stats.LiveCount)
	assert.Equal(t, uint64(50+4*50), stats.Count)
}
