// Package index defines the uniform contract every vector index variant
// implements, the shared result type, and the exact linear-scan
// implementation that doubles as the dispatcher's fallback path.
package index

import (
	"io"
	"sort"
)

// Result is one search hit. Distance semantics follow the active metric:
// smaller is always closer.
type Result struct {
	Ordinal  uint64
	Distance float32
}

// SearchOptions carries per-query hints to an index.
type SearchOptions struct {
	// Filtered tells the index the caller will post-filter its results,
	// so recall-compensation (ACORN beam widening) applies.
	Filtered bool
}

// Kind identifies an index variant.
type Kind uint8

const (
	KindExact Kind = iota
	KindHNSW
	KindDiskANN
)

// String renders the kind for logs and snapshots.
func (k Kind) String() string {
	switch k {
	case KindHNSW:
		return "hnsw"
	case KindDiskANN:
		return "diskann"
	}
	return "exact"
}

// Index is the uniform contract over the active index variant. Vectors
// live in the SoA store; indexes reference them by ordinal. All methods
// are called under the database's write guard (mutations) or read guard
// (searches).
type Index interface {
	// Kind identifies the variant.
	Kind() Kind

	// Build constructs the index from every live row in the store.
	Build() error

	// Insert registers a row already present in the store.
	Insert(ordinal uint64) error

	// Delete detaches a tombstoned row.
	Delete(ordinal uint64) error

	// Update re-registers a row after an in-place vector overwrite.
	Update(ordinal uint64) error

	// Search returns up to k nearest live rows, distances non-decreasing.
	Search(query []float32, k int, opts SearchOptions) ([]Result, error)

	// RangeSearch returns every live row within radius, closest first,
	// capped at maxResults when maxResults > 0.
	RangeSearch(query []float32, radius float32, maxResults int, opts SearchOptions) ([]Result, error)

	// Save writes the index block, including enough row data to rebuild
	// the store on load.
	Save(w io.Writer) error

	// Load reconstructs the index (and repopulates the store) from a
	// block written by Save.
	Load(r io.Reader) error

	// Close releases index-held resources.
	Close() error
}

// SortResults orders results by distance, breaking ties by ordinal so
// equal inputs produce identical output across runs.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Ordinal < results[j].Ordinal
	})
}
