package diskann

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_SlotAlignment(t *testing.T) {
	// Given: an 8-dim store with 512-byte sectors (32 data bytes/row)
	d, err := newDiskStore(filepath.Join(t.TempDir(), "v.dat"), 8, 512, 1)
	require.NoError(t, err)
	defer func() { _ = d.close() }()

	// Then: slots round up to whole sectors
	assert.Equal(t, int64(512), d.slotSize)

	// And: a 200-dim row (800 bytes) takes two sectors
	d2, err := newDiskStore(filepath.Join(t.TempDir(), "v2.dat"), 200, 512, 1)
	require.NoError(t, err)
	defer func() { _ = d2.close() }()
	assert.Equal(t, int64(1024), d2.slotSize)
}

func TestDiskStore_RejectsBadSector(t *testing.T) {
	_, err := newDiskStore(filepath.Join(t.TempDir(), "v.dat"), 8, 1000, 1)
	require.Error(t, err)
}

func TestDiskStore_WriteReadRoundTrip(t *testing.T) {
	d, err := newDiskStore(filepath.Join(t.TempDir(), "v.dat"), 4, 512, 1)
	require.NoError(t, err)
	defer func() { _ = d.close() }()

	// Given: vectors at scattered slots
	rows := map[uint64][]float32{
		0:  {1, 2, 3, 4},
		7:  {-1, -2, -3, -4},
		63: {0.5, 0, -0.5, 9},
	}
	for ord, v := range rows {
		require.NoError(t, d.writeVector(ord, v))
	}
	require.NoError(t, d.sync())

	// Then: each reads back exactly, twice (second hit from cache)
	for pass := 0; pass < 2; pass++ {
		for ord, want := range rows {
			got, err := d.readVector(ord)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
	assert.Positive(t, d.cacheLen())
}

func TestDiskStore_WriteInvalidatesCachedPage(t *testing.T) {
	d, err := newDiskStore(filepath.Join(t.TempDir(), "v.dat"), 2, 512, 1)
	require.NoError(t, err)
	defer func() { _ = d.close() }()

	require.NoError(t, d.writeVector(0, []float32{1, 1}))
	got, err := d.readVector(0)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 1}, got)

	// When: the slot is overwritten
	require.NoError(t, d.writeVector(0, []float32{2, 2}))

	// Then: the next read sees the new value, not the cached page
	got, err = d.readVector(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, got)
}

func TestDiskStore_ReadPastEnd(t *testing.T) {
	d, err := newDiskStore(filepath.Join(t.TempDir(), "v.dat"), 2, 512, 1)
	require.NoError(t, err)
	defer func() { _ = d.close() }()

	require.NoError(t, d.writeVector(0, []float32{1, 1}))

	_, err = d.readVector(500)
	assert.Error(t, err)
}
