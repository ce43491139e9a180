package vektor

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade_EndToEndHNSW(t *testing.T) {
	// Given: a 4-dim cosine database with a WAL
	tmpDir := t.TempDir()
	cfg := DefaultConfig(4)
	cfg.Database.Metric = MetricCosine
	cfg.WAL.Path = filepath.Join(tmpDir, "vektor.wal")
	cfg.Compaction.Enabled = false

	db, err := Open(cfg)
	require.NoError(t, err)

	// When: I add tagged vectors
	ord, err := db.Add([]float32{1, 0, 0, 0}, []Pair{{Key: "category", Value: "science"}})
	require.NoError(t, err)
	_, err = db.Add([]float32{0, 1, 0, 0}, []Pair{{Key: "category", Value: "art"}})
	require.NoError(t, err)

	// Then: filtered search honors the tag
	hits, err := db.SearchFiltered([]float32{1, 0, 0, 0}, 5, Eq("category", "science"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ord, hits[0].Ordinal)

	// And: the WAL dump names the inserts
	var buf bytes.Buffer
	require.NoError(t, db.DumpWAL(&buf))
	assert.Contains(t, buf.String(), "INSERT")

	// And: state survives close/reopen via WAL replay
	require.NoError(t, db.Close())
	db2, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()
	assert.Equal(t, uint64(2), db2.Count())
}

func TestFacade_EndToEndDiskANN(t *testing.T) {
	// Given: an 8-dim DiskANN database over 64 synthetic vectors
	tmpDir := t.TempDir()
	cfg := DefaultConfig(8)
	cfg.Database.IndexType = IndexDiskANN
	cfg.Database.ExactSearchThreshold = 0
	cfg.DiskANN.DataPath = filepath.Join(tmpDir, "vectors.dat")
	cfg.Compaction.Enabled = false

	db, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var v0 []float32
	for i := 0; i < 64; i++ {
		v := make([]float32, 8)
		for d := range v {
			v[d] = float32(math.Sin(float64(i) + 0.5*float64(d)))
		}
		if i == 0 {
			v0 = v
		}
		_, err := db.Add(v, nil)
		require.NoError(t, err)
	}

	// When: I search k=5 with v_0
	hits, err := db.Search(v0, 5)
	require.NoError(t, err)

	// Then: ordinal 0 comes first at distance below 1e-3
	require.NotEmpty(t, hits)
	assert.Equal(t, uint64(0), hits[0].Ordinal)
	assert.Less(t, hits[0].Distance, float32(1e-3))
}

func TestFacade_SnapshotRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig(4)
	cfg.Compaction.Enabled = false

	db, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for i := 0; i < 10; i++ {
		_, err := db.Add([]float32{float32(i), 0, 0, 0}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, db.Delete(4))

	path := filepath.Join(tmpDir, "db.vkt")
	require.NoError(t, db.Save(path))

	db2, err := Open(noCompactionConfig(4))
	require.NoError(t, err)
	defer func() { _ = db2.Close() }()
	require.NoError(t, db2.LoadSnapshot(path))

	assert.Equal(t, uint64(10), db2.Count())
	assert.Equal(t, uint64(9), db2.LiveCount())

	deleted, err := db2.IsDeleted(4)
	require.NoError(t, err)
	assert.True(t, deleted)
}

// noCompactionConfig mirrors DefaultConfig with the background
// worker off, for tests that assert exact row counts.
func noCompactionConfig(dim int) *Config {
	cfg := DefaultConfig(dim)
	cfg.Compaction.Enabled = false
	return cfg
}

func TestFacade_CompactAndStats(t *testing.T) {
	cfg := noCompactionConfig(2)
	db, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for i := 0; i < 6; i++ {
		_, err := db.Add([]float32{float32(i), 0}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, db.Delete(1))
	require.NoError(t, db.Compact())

	stats := db.Stats()
	assert.Equal(t, uint64(5), stats.Count)
	assert.Equal(t, uint64(5), stats.LiveCount)
	assert.Equal(t, uint64(1), stats.Compactions)
	assert.Equal(t, 2, stats.Dimension)
}
