package index

import (
	"container/heap"
	"io"

	"github.com/vektordb/vektor/internal/distance"
	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/metaindex"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Exact is the brute-force index: every query is a linear scan of the
// live rows. It is both a first-class index variant and the dispatcher's
// fallback for small row counts.
type Exact struct {
	store *vecstore.Store
	dist  distance.Func
}

// NewExact creates an exact index over the store.
func NewExact(store *vecstore.Store, metric distance.Metric) *Exact {
	return &Exact{store: store, dist: distance.ForMetric(metric)}
}

func (e *Exact) Kind() Kind { return KindExact }

// Build is a no-op: the store is the index.
func (e *Exact) Build() error { return nil }

func (e *Exact) Insert(uint64) error { return nil }
func (e *Exact) Delete(uint64) error { return nil }
func (e *Exact) Update(uint64) error { return nil }
func (e *Exact) Close() error        { return nil }

// Search scans every live row.
func (e *Exact) Search(query []float32, k int, _ SearchOptions) ([]Result, error) {
	if len(query) != e.store.Dimension() {
		return nil, verrors.DimensionMismatch(e.store.Dimension(), len(query))
	}
	return Scan(e.store, e.dist, query, k, nil), nil
}

// RangeSearch scans every live row and keeps those within radius.
func (e *Exact) RangeSearch(query []float32, radius float32, maxResults int, _ SearchOptions) ([]Result, error) {
	if len(query) != e.store.Dimension() {
		return nil, verrors.DimensionMismatch(e.store.Dimension(), len(query))
	}
	return ScanRange(e.store, e.dist, query, radius, maxResults, nil), nil
}

// Save writes every row (tombstones included, to preserve ordinals).
func (e *Exact) Save(w io.Writer) error {
	if err := WriteU64(w, e.store.Count()); err != nil {
		return err
	}
	for ord := uint64(0); ord < e.store.Count(); ord++ {
		deleted, _ := e.store.IsDeleted(ord)
		if err := WriteBool(w, deleted); err != nil {
			return err
		}
		if err := WriteVector(w, e.store.Vector(ord)); err != nil {
			return err
		}
		if err := WritePairs(w, e.store.Metadata(ord)); err != nil {
			return err
		}
	}
	return nil
}

// Load repopulates the store from a Save block.
func (e *Exact) Load(r io.Reader) error {
	count, err := ReadU64(r)
	if err != nil {
		return err
	}

	e.store.Reset()
	dim := e.store.Dimension()
	for i := uint64(0); i < count; i++ {
		deleted, err := ReadBool(r)
		if err != nil {
			return err
		}
		vector, err := ReadVector(r, dim)
		if err != nil {
			return err
		}
		pairs, err := ReadPairs(r)
		if err != nil {
			return err
		}
		ord, err := e.store.Add(vector, pairs)
		if err != nil {
			return err
		}
		if deleted {
			if err := e.store.MarkDeleted(ord); err != nil {
				return err
			}
		}
	}
	return nil
}

// resultHeap is a max-heap by distance, holding the best k seen so far.
type resultHeap []Result

func (h resultHeap) Len() int      { return len(h) }
func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h resultHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].Ordinal > h[j].Ordinal
}
func (h *resultHeap) Push(x any) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Scan returns the k nearest live rows by linear scan. A non-nil filter
// is verified against each row's metadata before ranking.
func Scan(store *vecstore.Store, dist distance.Func, query []float32, k int, filter *metaindex.Filter) []Result {
	if k <= 0 {
		return nil
	}

	h := make(resultHeap, 0, k+1)
	store.ForEachLive(func(ord uint64, vector []float32, meta []vecstore.Pair) bool {
		if filter != nil && !filter.Matches(meta) {
			return true
		}
		d := dist(query, vector)
		heap.Push(&h, Result{Ordinal: ord, Distance: d})
		if len(h) > k {
			heap.Pop(&h)
		}
		return true
	})

	results := []Result(h)
	SortResults(results)
	return results
}

// ScanRange returns every live row within radius, closest first, capped
// at maxResults when maxResults > 0.
func ScanRange(store *vecstore.Store, dist distance.Func, query []float32, radius float32, maxResults int, filter *metaindex.Filter) []Result {
	var results []Result
	store.ForEachLive(func(ord uint64, vector []float32, meta []vecstore.Pair) bool {
		if filter != nil && !filter.Matches(meta) {
			return true
		}
		if d := dist(query, vector); d <= radius {
			results = append(results, Result{Ordinal: ord, Distance: d})
		}
		return true
	})

	SortResults(results)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
