// Package vecstore implements the authoritative structure-of-arrays vector
// store: one contiguous float32 buffer plus parallel tombstone and metadata
// arrays, addressed by stable 64-bit row ordinals.
//
// The store performs no internal locking. The owning database serializes
// all access through its reader-writer lock; views handed out by GetView
// are borrows valid only while the caller holds a read guard.
package vecstore

import (
	verrors "github.com/vektordb/vektor/internal/errors"
)

// Pair is one (key, value) metadata entry. A row's metadata is an ordered
// sequence of pairs.
type Pair struct {
	Key   string
	Value string
}

// View is a borrow of one live row. The vector and metadata slices alias
// store-owned memory and must not be retained past the caller's guard.
type View struct {
	Ordinal  uint64
	Vector   []float32
	Metadata []Pair
}

// Store is the structure-of-arrays row store.
type Store struct {
	dim  int
	data []float32 // count*dim floats, contiguous

	tombstones []bool
	metadata   [][]Pair

	count     uint64 // next ordinal
	liveCount uint64
}

const initialCapacity = 64

// New creates an empty store with the given fixed dimension.
func New(dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, verrors.InvalidArgument("dimension must be > 0")
	}
	return &Store{
		dim:        dimension,
		data:       make([]float32, 0, initialCapacity*dimension),
		tombstones: make([]bool, 0, initialCapacity),
		metadata:   make([][]Pair, 0, initialCapacity),
	}, nil
}

// Dimension returns the fixed row dimension.
func (s *Store) Dimension() int { return s.dim }

// Count returns the next ordinal, i.e. total rows ever added, tombstoned
// included.
func (s *Store) Count() uint64 { return s.count }

// LiveCount returns the number of non-tombstoned rows.
func (s *Store) LiveCount() uint64 { return s.liveCount }

// Tombstones returns the number of tombstoned rows.
func (s *Store) Tombstones() uint64 { return s.count - s.liveCount }

// Add appends a row and returns its ordinal. The vector is copied; the
// metadata slice is taken over by the store.
func (s *Store) Add(vector []float32, metadata []Pair) (uint64, error) {
	if len(vector) != s.dim {
		return 0, verrors.DimensionMismatch(s.dim, len(vector))
	}

	ordinal := s.count
	s.data = append(s.data, vector...)
	s.tombstones = append(s.tombstones, false)
	s.metadata = append(s.metadata, metadata)
	s.count++
	s.liveCount++
	return ordinal, nil
}

// GetView borrows a live row. Out-of-range ordinals return NotFound;
// tombstoned rows return AlreadyDeleted.
func (s *Store) GetView(ordinal uint64) (View, error) {
	if ordinal >= s.count {
		return View{}, verrors.NotFound("row", ordinal)
	}
	if s.tombstones[ordinal] {
		return View{}, verrors.AlreadyDeleted(ordinal)
	}
	return View{
		Ordinal:  ordinal,
		Vector:   s.Vector(ordinal),
		Metadata: s.metadata[ordinal],
	}, nil
}

// Vector returns the raw row slice without liveness checks. Index
// internals use it for distance computations where stale edges are
// expected and filtered at emission.
func (s *Store) Vector(ordinal uint64) []float32 {
	off := int(ordinal) * s.dim
	return s.data[off : off+s.dim : off+s.dim]
}

// MarkDeleted tombstones a row. The storage stays in place until
// compaction rewrites the store.
func (s *Store) MarkDeleted(ordinal uint64) error {
	if ordinal >= s.count {
		return verrors.NotFound("row", ordinal)
	}
	if s.tombstones[ordinal] {
		return verrors.AlreadyDeleted(ordinal)
	}
	s.tombstones[ordinal] = true
	s.liveCount--
	return nil
}

// IsDeleted reports whether a row is tombstoned. Out-of-range ordinals are
// an error, never "deleted".
func (s *Store) IsDeleted(ordinal uint64) (bool, error) {
	if ordinal >= s.count {
		return false, verrors.NotFound("row", ordinal)
	}
	return s.tombstones[ordinal], nil
}

// UpdateData overwrites a live row's vector in place. Metadata is
// untouched.
func (s *Store) UpdateData(ordinal uint64, vector []float32) error {
	if ordinal >= s.count {
		return verrors.NotFound("row", ordinal)
	}
	if s.tombstones[ordinal] {
		return verrors.AlreadyDeleted(ordinal)
	}
	if len(vector) != s.dim {
		return verrors.DimensionMismatch(s.dim, len(vector))
	}
	copy(s.Vector(ordinal), vector)
	return nil
}

// SetMetadata replaces a live row's metadata chain. The caller updates the
// inverted index in the same critical section.
func (s *Store) SetMetadata(ordinal uint64, metadata []Pair) error {
	if ordinal >= s.count {
		return verrors.NotFound("row", ordinal)
	}
	if s.tombstones[ordinal] {
		return verrors.AlreadyDeleted(ordinal)
	}
	s.metadata[ordinal] = metadata
	return nil
}

// Metadata returns a row's metadata chain without liveness checks.
func (s *Store) Metadata(ordinal uint64) []Pair {
	return s.metadata[ordinal]
}

// ForEachLive calls fn for every live row in ordinal order. Returning
// false stops the walk.
func (s *Store) ForEachLive(fn func(ordinal uint64, vector []float32, metadata []Pair) bool) {
	for ord := uint64(0); ord < s.count; ord++ {
		if s.tombstones[ord] {
			continue
		}
		if !fn(ord, s.Vector(ord), s.metadata[ord]) {
			return
		}
	}
}

// Reset drops every row, keeping the dimension. Used by the index Load
// methods when a snapshot repopulates the store.
func (s *Store) Reset() {
	s.data = s.data[:0]
	s.tombstones = s.tombstones[:0]
	s.metadata = s.metadata[:0]
	s.count = 0
	s.liveCount = 0
}
