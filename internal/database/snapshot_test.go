package database

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vektordb/vektor/internal/config"
	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/vecstore"
)

func populateRandom(t *testing.T, db *Database, n, dim int, seed int64) [][]float32 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		vectors[i] = v
		_, err := db.Add(v, nil)
		require.NoError(t, err)
	}
	return vectors
}

func TestSnapshot_RoundTripBitIdenticalResults(t *testing.T) {
	// Given: an HNSW database with rows, metadata, and a tombstone
	cfg := testConfig(t, 8)
	cfg.Database.ExactSearchThreshold = 0
	db := openTest(t, cfg)

	vectors := populateRandom(t, db, 80, 8, 1)
	require.NoError(t, db.UpdateMetadata(2, []vecstore.Pair{{Key: "category", Value: "science"}}))
	require.NoError(t, db.Delete(9))

	queries := vectors[:10]
	before := make([][]SearchResult, len(queries))
	for i, q := range queries {
		r, err := db.Search(q, 5)
		require.NoError(t, err)
		before[i] = r
	}

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	// When: a fresh database loads the snapshot
	cfg2 := testConfig(t, 8)
	cfg2.Database.ExactSearchThreshold = 0
	db2 := openTest(t, cfg2)
	require.NoError(t, db2.LoadSnapshot(path))

	// Then: counts, tombstones, metadata, and every query match exactly
	assert.Equal(t, db.Count(), db2.Count())
	assert.Equal(t, db.LiveCount(), db2.LiveCount())

	deleted, err := db2.IsDeleted(9)
	require.NoError(t, err)
	assert.True(t, deleted)

	row, err := db2.Get(2)
	require.NoError(t, err)
	require.Len(t, row.Metadata, 1)
	assert.Equal(t, "science", row.Metadata[0].Value)

	for i, q := range queries {
		r, err := db2.Search(q, 5)
		require.NoError(t, err)
		assert.Equal(t, before[i], r, "query %d diverged after snapshot reload", i)
	}
}

func TestSnapshot_CRCMismatchRejected(t *testing.T) {
	db := openTest(t, testConfig(t, 4))
	populateRandom(t, db, 10, 4, 2)

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	// Flip one byte in the middle of the file
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	err = db.LoadSnapshot(path)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeCorruptSnapshot, verrors.GetCode(err))
}

func TestSnapshot_BadMagicRejected(t *testing.T) {
	db := openTest(t, testConfig(t, 4))

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data[:4], "XXXX")
	// Restore a valid trailing CRC so only the magic is wrong
	require.NoError(t, os.WriteFile(path, recrc(data), 0o644))

	err = db.LoadSnapshot(path)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeFormat, verrors.GetCode(err))
}

func TestSnapshot_DimensionMismatchRejected(t *testing.T) {
	db := openTest(t, testConfig(t, 4))
	populateRandom(t, db, 5, 4, 3)

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	other := openTest(t, testConfig(t, 8))
	err := other.LoadSnapshot(path)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeFormat, verrors.GetCode(err))
}

func TestSnapshot_IndexTypeMismatchRejected(t *testing.T) {
	db := openTest(t, testConfig(t, 4))
	populateRandom(t, db, 5, 4, 4)

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	cfg := testConfig(t, 4)
	cfg.Database.IndexType = config.IndexTypeExact
	other := openTest(t, cfg)
	err := other.LoadSnapshot(path)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeFormat, verrors.GetCode(err))
}

func TestSnapshot_ExactIndexRoundTrip(t *testing.T) {
	cfg := testConfig(t, 4)
	cfg.Database.IndexType = config.IndexTypeExact
	db := openTest(t, cfg)
	vectors := populateRandom(t, db, 20, 4, 5)
	require.NoError(t, db.Delete(3))

	path := filepath.Join(t.TempDir(), "db.vkt")
	require.NoError(t, db.Save(path))

	cfg2 := testConfig(t, 4)
	cfg2.Database.IndexType = config.IndexTypeExact
	db2 := openTest(t, cfg2)
	require.NoError(t, db2.LoadSnapshot(path))

	results, err := db2.Search(vectors[7], 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(7), results[0].Ordinal)
}

// recrc rewrites the trailing CRC to match the (possibly modified) body.
func recrc(data []byte) []byte {
	body := data[:len(data)-4]
	out := make([]byte, len(data))
	copy(out, body)
	binary.LittleEndian.PutUint32(out[len(out)-4:], crc32.ChecksumIEEE(body))
	return out
}
