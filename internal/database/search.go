package database

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/metaindex"
)

// Search returns the k nearest live rows.
func (db *Database) Search(query []float32, k int) ([]SearchResult, error) {
	return db.SearchFiltered(query, k, nil)
}

// SearchFiltered returns the k nearest live rows whose metadata matches
// the filter. Approximate indexes oversample and post-filter; the exact
// path filters inline.
func (db *Database) SearchFiltered(query []float32, k int, filter *metaindex.Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, verrors.InvalidArgument("k must be > 0")
	}
	if len(query) != db.cfg.Database.Dimension {
		return nil, verrors.DimensionMismatch(db.cfg.Database.Dimension, len(query))
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, verrors.InvalidArgument("database is closed")
	}

	var cacheKey uint64
	if filter == nil && db.queryCache != nil {
		cacheKey = hashQuery(query, k)
		if cached, ok := db.queryCache.Get(cacheKey); ok {
			db.bumpCounter(func(c *counters) { c.CacheHits++ })
			return cached, nil
		}
	}

	var hits []index.Result
	var err error
	if db.useExactScan() {
		hits = db.exactCandidates(query, k, filter)
	} else if filter == nil {
		hits, err = db.idx.Search(query, k, index.SearchOptions{})
	} else {
		hits, err = db.oversampledSearch(query, k, filter)
	}
	if err != nil {
		return nil, err
	}

	results := db.materialize(hits)
	if filter == nil && db.queryCache != nil {
		db.queryCache.Add(cacheKey, results)
	}
	db.bumpCounter(func(c *counters) { c.Searches++ })
	return results, nil
}

// useExactScan decides between linear scan and the active index.
func (db *Database) useExactScan() bool {
	if db.cfg.Database.ForceExactSearch {
		return true
	}
	return db.store.Count() <= uint64(db.cfg.Database.ExactSearchThreshold)
}

// exactCandidates serves a query by linear scan, narrowing by the
// inverted index when the filter allows it.
func (db *Database) exactCandidates(query []float32, k int, filter *metaindex.Filter) []index.Result {
	if filter != nil {
		if set, ok := filter.Candidates(db.meta); ok {
			return db.rankCandidateSet(query, k, set, filter)
		}
	}
	return index.Scan(db.store, db.dist, query, k, filter)
}

// rankCandidateSet verifies and ranks an index-served candidate set.
func (db *Database) rankCandidateSet(query []float32, k int, set map[uint64]struct{}, filter *metaindex.Filter) []index.Result {
	results := make([]index.Result, 0, len(set))
	for ord := range set {
		deleted, err := db.store.IsDeleted(ord)
		if err != nil || deleted {
			continue
		}
		if !filter.Matches(db.store.Metadata(ord)) {
			continue
		}
		results = append(results, index.Result{Ordinal: ord, Distance: db.dist(query, db.store.Vector(ord))})
	}
	index.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// oversampledSearch widens an approximate query by the oversample
// factor, then post-filters until k rows match or candidates run out.
func (db *Database) oversampledSearch(query []float32, k int, filter *metaindex.Filter) ([]index.Result, error) {
	factor := 2
	if pool := db.cfg.Database.CandidatePool; pool > 0 {
		if f := int(math.Ceil(float64(pool) / float64(k))); f > factor {
			factor = f
		}
	}

	hits, err := db.idx.Search(query, k*factor, index.SearchOptions{Filtered: true})
	if err != nil {
		return nil, err
	}

	matched := hits[:0]
	for _, h := range hits {
		if !filter.Matches(db.store.Metadata(h.Ordinal)) {
			continue
		}
		matched = append(matched, h)
		if len(matched) == k {
			break
		}
	}
	return matched, nil
}

// RangeSearch returns every live row within radius, closest first,
// capped at maxResults when maxResults > 0.
func (db *Database) RangeSearch(query []float32, radius float32, maxResults int, filter *metaindex.Filter) ([]SearchResult, error) {
	if len(query) != db.cfg.Database.Dimension {
		return nil, verrors.DimensionMismatch(db.cfg.Database.Dimension, len(query))
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, verrors.InvalidArgument("database is closed")
	}

	var hits []index.Result
	var err error
	if db.useExactScan() {
		hits = index.ScanRange(db.store, db.dist, query, radius, maxResults, filter)
	} else {
		limit := maxResults
		if filter != nil {
			limit = 0 // post-filter first, trim after
		}
		hits, err = db.idx.RangeSearch(query, radius, limit, index.SearchOptions{Filtered: filter != nil})
		if err != nil {
			return nil, err
		}
		if filter != nil {
			matched := hits[:0]
			for _, h := range hits {
				if filter.Matches(db.store.Metadata(h.Ordinal)) {
					matched = append(matched, h)
				}
			}
			hits = matched
			if maxResults > 0 && len(hits) > maxResults {
				hits = hits[:maxResults]
			}
		}
	}

	db.bumpCounter(func(c *counters) { c.Searches++ })
	return db.materialize(hits), nil
}

// BatchSearch runs independent queries with bounded parallelism.
func (db *Database) BatchSearch(queries [][]float32, k int) ([][]SearchResult, error) {
	results := make([][]SearchResult, len(queries))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, q := range queries {
		g.Go(func() error {
			r, err := db.Search(q, k)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// materialize copies hit rows out of the store.
func (db *Database) materialize(hits []index.Result) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		view, err := db.store.GetView(h.Ordinal)
		if err != nil {
			continue // tombstoned between ranking and emission
		}
		results = append(results, db.copyResult(h.Ordinal, h.Distance, view))
	}
	return results
}

// invalidateQueryCache drops every cached result; called on mutation.
func (db *Database) invalidateQueryCache() {
	if db.queryCache != nil {
		db.queryCache.Purge()
	}
}

// hashQuery fingerprints a query for the result cache.
func hashQuery(query []float32, k int) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range query {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		_, _ = h.Write(buf[:])
	}
	binary.LittleEndian.PutUint32(buf[:], uint32(k))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
