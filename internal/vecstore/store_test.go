package vecstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/vektordb/vektor/internal/errors"
)

func TestStore_AddAndView(t *testing.T) {
	// Given: an empty 4-dim store
	s, err := New(4)
	require.NoError(t, err)

	// When: I add two rows
	ord0, err := s.Add([]float32{1, 2, 3, 4}, []Pair{{Key: "category", Value: "science"}})
	require.NoError(t, err)
	ord1, err := s.Add([]float32{5, 6, 7, 8}, nil)
	require.NoError(t, err)

	// Then: ordinals are sequential and views reflect the rows
	assert.Equal(t, uint64(0), ord0)
	assert.Equal(t, uint64(1), ord1)
	assert.Equal(t, uint64(2), s.Count())
	assert.Equal(t, uint64(2), s.LiveCount())

	v, err := s.GetView(ord0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, v.Vector)
	assert.Equal(t, "science", v.Metadata[0].Value)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s, err := New(4)
	require.NoError(t, err)

	_, err = s.Add([]float32{1, 2}, nil)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeDimensionMismatch, verrors.GetCode(err))
}

func TestStore_ZeroDimensionRejected(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestStore_TombstoneSemantics(t *testing.T) {
	// Given: a store with one row
	s, err := New(2)
	require.NoError(t, err)
	ord, err := s.Add([]float32{1, 2}, nil)
	require.NoError(t, err)

	// When: I tombstone it
	require.NoError(t, s.MarkDeleted(ord))

	// Then: it is deleted but the ordinal space is unchanged
	deleted, err := s.IsDeleted(ord)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, uint64(1), s.Count())
	assert.Equal(t, uint64(0), s.LiveCount())
	assert.Equal(t, uint64(1), s.Tombstones())

	// And: views and mutations distinguish deleted from missing
	_, err = s.GetView(ord)
	assert.Equal(t, verrors.ErrCodeAlreadyDeleted, verrors.GetCode(err))

	_, err = s.GetView(99)
	assert.Equal(t, verrors.ErrCodeNotFound, verrors.GetCode(err))

	err = s.MarkDeleted(ord)
	assert.Equal(t, verrors.ErrCodeAlreadyDeleted, verrors.GetCode(err))

	_, err = s.IsDeleted(99)
	assert.Equal(t, verrors.ErrCodeNotFound, verrors.GetCode(err))
}

func TestStore_UpdateDataInPlace(t *testing.T) {
	s, err := New(3)
	require.NoError(t, err)
	ord, err := s.Add([]float32{1, 1, 1}, []Pair{{Key: "k", Value: "v"}})
	require.NoError(t, err)

	// When: I overwrite the vector
	require.NoError(t, s.UpdateData(ord, []float32{9, 9, 9}))

	// Then: data changed, metadata untouched
	v, err := s.GetView(ord)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9, 9}, v.Vector)
	assert.Equal(t, "v", v.Metadata[0].Value)

	// And: wrong-dimension updates are rejected
	err = s.UpdateData(ord, []float32{1})
	assert.Equal(t, verrors.ErrCodeDimensionMismatch, verrors.GetCode(err))
}

func TestStore_SetMetadata(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	ord, err := s.Add([]float32{1, 2}, []Pair{{Key: "a", Value: "1"}})
	require.NoError(t, err)

	require.NoError(t, s.SetMetadata(ord, []Pair{{Key: "b", Value: "2"}}))

	v, err := s.GetView(ord)
	require.NoError(t, err)
	require.Len(t, v.Metadata, 1)
	assert.Equal(t, "b", v.Metadata[0].Key)
}

func TestStore_ForEachLiveSkipsTombstones(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Add([]float32{float32(i)}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.MarkDeleted(1))
	require.NoError(t, s.MarkDeleted(3))

	var seen []uint64
	s.ForEachLive(func(ord uint64, vec []float32, meta []Pair) bool {
		seen = append(seen, ord)
		return true
	})
	assert.Equal(t, []uint64{0, 2, 4}, seen)
}

func TestStore_GrowthPreservesRows(t *testing.T) {
	// Given: enough rows to force several buffer growths
	s, err := New(8)
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		row := make([]float32, 8)
		for d := range row {
			row[d] = float32(i*8 + d)
		}
		_, err := s.Add(row, nil)
		require.NoError(t, err)
	}

	// Then: every row still reads back exactly
	for i := 0; i < 500; i++ {
		v, err := s.GetView(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, float32(i*8), v.Vector[0])
		assert.Equal(t, float32(i*8+7), v.Vector[7])
	}
}

func TestStore_Reset(t *testing.T) {
	s, err := New(2)
	require.NoError(t, err)
	_, err = s.Add([]float32{1, 2}, nil)
	require.NoError(t, err)

	s.Reset()
	assert.Equal(t, uint64(0), s.Count())
	assert.Equal(t, 2, s.Dimension())
}
