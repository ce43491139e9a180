package hnsw

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vektordb/vektor/internal/distance"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/vecstore"
)

func buildIndex(t *testing.T, dim int, vectors [][]float32, cfg Config) (*vecstore.Store, *Index) {
	t.Helper()
	s, err := vecstore.New(dim)
	require.NoError(t, err)
	ix := New(s, distance.L2, cfg)
	for _, v := range vectors {
		ord, err := s.Add(v, nil)
		require.NoError(t, err)
		require.NoError(t, ix.Insert(ord))
	}
	return s, ix
}

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func TestHNSW_SearchFindsExactMatchFirst(t *testing.T) {
	// Given: 200 random vectors
	vectors := randomVectors(200, 8, 1)
	_, ix := buildIndex(t, 8, vectors, DefaultConfig())

	// When: I query with stored vectors
	for _, probe := range []int{0, 57, 123, 199} {
		results, err := ix.Search(vectors[probe], 5, index.SearchOptions{})
		require.NoError(t, err)
		require.NotEmpty(t, results)

		// Then: the row itself is the first result at distance ~0
		assert.Equal(t, uint64(probe), results[0].Ordinal)
		assert.InDelta(t, 0, results[0].Distance, 1e-5)

		// And: distances are non-decreasing
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
		}
	}
}

func TestHNSW_EmptyAndBoundaries(t *testing.T) {
	s, err := vecstore.New(4)
	require.NoError(t, err)
	ix := New(s, distance.L2, DefaultConfig())

	// Empty index returns no results, not an error
	results, err := ix.Search([]float32{1, 2, 3, 4}, 3, index.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Dimension mismatch is rejected
	_, err = ix.Search([]float32{1}, 3, index.SearchOptions{})
	require.Error(t, err)

	// k larger than count returns at most count
	ord, err := s.Add([]float32{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Insert(ord))
	results, err = ix.Search([]float32{1, 2, 3, 4}, 10, index.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHNSW_DeleteRemovesFromResultsAndEdges(t *testing.T) {
	vectors := randomVectors(100, 8, 2)
	s, ix := buildIndex(t, 8, vectors, DefaultConfig())

	// When: I delete row 10
	require.NoError(t, s.MarkDeleted(10))
	require.NoError(t, ix.Delete(10))

	// Then: it never appears in results
	results, err := ix.Search(vectors[10], 20, index.SearchOptions{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint64(10), r.Ordinal)
	}

	// And: no neighbor list references it anymore
	for ord, nd := range ix.nodes {
		if nd == nil {
			continue
		}
		for _, list := range nd.neighbors {
			for _, nb := range list {
				assert.NotEqual(t, uint64(10), nb, "node %d still links to deleted node", ord)
			}
		}
	}

	// And: double delete reports AlreadyDeleted
	assert.Error(t, ix.Delete(10))
}

func TestHNSW_EntryPointMigratesOnDelete(t *testing.T) {
	vectors := randomVectors(20, 4, 3)
	s, ix := buildIndex(t, 4, vectors, DefaultConfig())

	// When: I delete the entry point
	victim := uint64(ix.entry)
	require.NoError(t, s.MarkDeleted(victim))
	require.NoError(t, ix.Delete(victim))

	// Then: the entry moved to a live node and search still works
	require.GreaterOrEqual(t, ix.entry, int64(0))
	assert.NotEqual(t, victim, uint64(ix.entry))

	results, err := ix.Search(vectors[0], 5, index.SearchOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestHNSW_UpdateRelocatesRow(t *testing.T) {
	vectors := randomVectors(100, 8, 4)
	s, ix := buildIndex(t, 8, vectors, DefaultConfig())

	// When: I overwrite row 5 far from its old position
	newVec := []float32{10, 10, 10, 10, 10, 10, 10, 10}
	require.NoError(t, s.UpdateData(5, newVec))
	require.NoError(t, ix.Update(5))

	// Then: searching the new vector finds row 5 first at distance 0
	results, err := ix.Search(newVec, 3, index.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(5), results[0].Ordinal)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
}

func TestHNSW_Determinism(t *testing.T) {
	// Two indexes built from the same sequence answer identically
	vectors := randomVectors(150, 8, 5)
	_, ixA := buildIndex(t, 8, vectors, DefaultConfig())
	_, ixB := buildIndex(t, 8, vectors, DefaultConfig())

	query := vectors[42]
	a, err := ixA.Search(query, 10, index.SearchOptions{})
	require.NoError(t, err)
	b, err := ixB.Search(query, 10, index.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHNSW_BinaryQuantSameTopResult(t *testing.T) {
	// Given: quantization on with generous rerank
	cfg := DefaultConfig()
	cfg.UseBinaryQuant = true
	cfg.QuantRerank = 64

	vectors := randomVectors(200, 16, 6)
	_, ix := buildIndex(t, 16, vectors, cfg)

	// Then: exact-match queries still rank the row itself first with a
	// true metric distance, not a Hamming count
	results, err := ix.Search(vectors[33], 5, index.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(33), results[0].Ordinal)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
}

func TestHNSW_ACORNWidensFilteredSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseACORN = true
	cfg.ACORNHops = 2

	vectors := randomVectors(100, 8, 7)
	_, ix := buildIndex(t, 8, vectors, cfg)

	// Filtered option widens the beam; results stay well-formed
	results, err := ix.Search(vectors[0], 10, index.SearchOptions{Filtered: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(0), results[0].Ordinal)
}

func TestHNSW_RangeSearchMatchesBruteForce(t *testing.T) {
	// Given: uniformly random vectors and a radius around one of them
	vectors := randomVectors(150, 4, 8)
	s, ix := buildIndex(t, 4, vectors, DefaultConfig())

	query := vectors[0]
	radius := float32(0.5)

	want := index.ScanRange(s, distance.ForMetric(distance.L2), query, radius, 0, nil)

	// When: the graph range search runs unbounded
	got, err := ix.RangeSearch(query, radius, 0, index.SearchOptions{})
	require.NoError(t, err)

	// Then: every returned distance is within the radius
	for _, r := range got {
		assert.LessOrEqual(t, r.Distance, radius)
	}

	// And: it finds the same rows as the exact scan
	wantSet := make(map[uint64]bool, len(want))
	for _, r := range want {
		wantSet[r.Ordinal] = true
	}
	gotSet := make(map[uint64]bool, len(got))
	for _, r := range got {
		gotSet[r.Ordinal] = true
	}
	assert.Equal(t, wantSet, gotSet)

	// And: maxResults caps the output
	capped, err := ix.RangeSearch(query, radius, 1, index.SearchOptions{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(capped), 1)
}

func TestHNSW_SaveLoadBitIdenticalResults(t *testing.T) {
	// Given: a built index with metadata and a tombstone
	vectors := randomVectors(120, 8, 9)
	s, ix := buildIndex(t, 8, vectors, DefaultConfig())
	require.NoError(t, s.SetMetadata(3, []vecstore.Pair{{Key: "category", Value: "science"}}))
	require.NoError(t, s.MarkDeleted(7))
	require.NoError(t, ix.Delete(7))

	queries := randomVectors(10, 8, 10)
	before := make([][]index.Result, len(queries))
	for i, q := range queries {
		r, err := ix.Search(q, 10, index.SearchOptions{})
		require.NoError(t, err)
		before[i] = r
	}
	edgesBefore := ix.EdgeCount()

	// When: I save and load into a fresh store+index
	var buf bytes.Buffer
	require.NoError(t, ix.Save(&buf))

	s2, err := vecstore.New(8)
	require.NoError(t, err)
	ix2 := New(s2, distance.L2, DefaultConfig())
	require.NoError(t, ix2.Load(&buf))

	// Then: store state, edge count, and every query result match exactly
	assert.Equal(t, s.Count(), s2.Count())
	assert.Equal(t, s.LiveCount(), s2.LiveCount())
	assert.Equal(t, edgesBefore, ix2.EdgeCount())

	meta, err := s2.GetView(3)
	require.NoError(t, err)
	require.Len(t, meta.Metadata, 1)
	assert.Equal(t, "science", meta.Metadata[0].Value)

	for i, q := range queries {
		r, err := ix2.Search(q, 10, index.SearchOptions{})
		require.NoError(t, err)
		assert.Equal(t, before[i], r, "query %d diverged after reload", i)
	}
}

func TestHNSW_BuildFromStore(t *testing.T) {
	// Given: a populated store
	s, err := vecstore.New(4)
	require.NoError(t, err)
	vectors := randomVectors(50, 4, 11)
	for _, v := range vectors {
		_, err := s.Add(v, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.MarkDeleted(10))

	// When: I build the index from scratch
	ix := New(s, distance.L2, DefaultConfig())
	require.NoError(t, ix.Build())

	// Then: live rows are searchable, the tombstoned one is absent
	results, err := ix.Search(vectors[20], 50, index.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), results[0].Ordinal)
	for _, r := range results {
		assert.NotEqual(t, uint64(10), r.Ordinal)
	}
}

func TestBinaryCode(t *testing.T) {
	code := binaryCode([]float32{1, -1, 0.5, -0.5, 0, -2, 3, -4, 9})
	// bits: 1,0,1,0,1,0,1,0 -> 0b01010101, then 1 -> 0b00000001
	require.Len(t, code, 2)
	assert.Equal(t, byte(0b01010101), code[0])
	assert.Equal(t, byte(0b00000001), code[1])

	assert.Equal(t, 0, hamming(code, code))
	other := binaryCode([]float32{-1, -1, 0.5, -0.5, 0, -2, 3, -4, 9})
	assert.Equal(t, 1, hamming(code, other))
}
