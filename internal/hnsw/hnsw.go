// Package hnsw implements a hierarchical navigable small-world graph
// index over row ordinals in the SoA store.
//
// Nodes live in an arena indexed by ordinal; neighbor lists hold
// ordinals, never pointers, which keeps save/load symmetric with the
// in-memory representation. Level selection draws from a fixed-seed
// source so the same insertion sequence always produces the same graph.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/vektordb/vektor/internal/distance"
	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Config tunes the graph.
type Config struct {
	// M caps neighbors per node per level.
	M int
	// EfConstruction is the build-time beam width.
	EfConstruction int
	// EfSearch is the query-time beam width.
	EfSearch int
	// MaxLevel caps node levels.
	MaxLevel int
	// UseBinaryQuant enables sign-bit fingerprints for coarse ordering.
	UseBinaryQuant bool
	// QuantRerank is how many quantized candidates get exact re-scoring.
	QuantRerank int
	// UseACORN widens the beam for filtered queries.
	UseACORN bool
	// ACORNHops is the widening hop count (1 or 2).
	ACORNHops int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
		MaxLevel:       16,
		QuantRerank:    50,
		ACORNHops:      1,
	}
}

type node struct {
	level     int
	neighbors [][]uint64 // one list per level 0..level
	deleted   bool
	code      []byte // sign-bit fingerprint when quantization is on
}

// Index is the HNSW graph.
type Index struct {
	store  *vecstore.Store
	metric distance.Metric
	dist   distance.Func
	cfg    Config

	nodes    []*node // arena keyed by ordinal
	entry    int64   // entry point ordinal, -1 when empty
	maxLevel int
	rng      *rand.Rand
}

// levelSeed fixes the level-selection stream so identical insertion
// sequences build identical graphs.
const levelSeed = 0x5EED

// New creates an empty HNSW index over the store.
func New(store *vecstore.Store, metric distance.Metric, cfg Config) *Index {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 128
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = 16
	}
	if cfg.QuantRerank <= 0 {
		cfg.QuantRerank = 50
	}
	return &Index{
		store:  store,
		metric: metric,
		dist:   distance.ForMetric(metric),
		cfg:    cfg,
		entry:  -1,
		rng:    rand.New(rand.NewSource(levelSeed)),
	}
}

func (ix *Index) Kind() index.Kind { return index.KindHNSW }

// Len returns the number of nodes in the arena, tombstoned included.
func (ix *Index) Len() int { return len(ix.nodes) }

// EdgeCount returns the total directed edge count across all levels.
func (ix *Index) EdgeCount() int {
	var n int
	for _, nd := range ix.nodes {
		if nd == nil {
			continue
		}
		for _, lst := range nd.neighbors {
			n += len(lst)
		}
	}
	return n
}

// randomLevel draws floor(-ln(U) / ln 2) clamped to MaxLevel.
func (ix *Index) randomLevel() int {
	u := 1 - ix.rng.Float64() // (0, 1]
	level := int(math.Floor(-math.Log(u) / math.Ln2))
	if level > ix.cfg.MaxLevel {
		level = ix.cfg.MaxLevel
	}
	return level
}

// Build constructs the graph from every live row.
func (ix *Index) Build() error {
	ix.nodes = nil
	ix.entry = -1
	ix.maxLevel = 0
	ix.rng = rand.New(rand.NewSource(levelSeed))

	var firstErr error
	ix.store.ForEachLive(func(ord uint64, _ []float32, _ []vecstore.Pair) bool {
		if err := ix.Insert(ord); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// ensureArena grows the arena to cover ordinal.
func (ix *Index) ensureArena(ordinal uint64) {
	for uint64(len(ix.nodes)) <= ordinal {
		ix.nodes = append(ix.nodes, nil)
	}
}

func (ix *Index) nodeAt(ordinal uint64) *node {
	if ordinal >= uint64(len(ix.nodes)) {
		return nil
	}
	return ix.nodes[ordinal]
}

// travDist is the traversal distance: Hamming over fingerprints when
// quantization is on, the exact metric otherwise.
func (ix *Index) travDist(query []float32, queryCode []byte, ordinal uint64) float32 {
	if queryCode != nil {
		if nd := ix.nodeAt(ordinal); nd != nil && nd.code != nil {
			return float32(hamming(queryCode, nd.code))
		}
	}
	return ix.dist(query, ix.store.Vector(ordinal))
}

// Insert adds a row already present in the store to the graph.
func (ix *Index) Insert(ordinal uint64) error {
	if ordinal >= ix.store.Count() {
		return verrors.NotFound("row", ordinal)
	}

	ix.ensureArena(ordinal)
	level := ix.randomLevel()
	nd := &node{
		level:     level,
		neighbors: make([][]uint64, level+1),
	}
	if ix.cfg.UseBinaryQuant {
		nd.code = binaryCode(ix.store.Vector(ordinal))
	}
	ix.nodes[ordinal] = nd

	if ix.entry < 0 {
		ix.entry = int64(ordinal)
		ix.maxLevel = level
		return nil
	}

	query := ix.store.Vector(ordinal)
	var queryCode []byte
	if ix.cfg.UseBinaryQuant {
		queryCode = nd.code
	}

	// Greedy descent from the top to one level above the target.
	cur := uint64(ix.entry)
	for lc := ix.maxLevel; lc > level; lc-- {
		cur = ix.greedyStep(query, queryCode, cur, lc)
	}

	// Beam-connect from min(level, maxLevel) down to 0.
	top := level
	if top > ix.maxLevel {
		top = ix.maxLevel
	}
	entries := []candidate{{ordinal: cur, dist: ix.travDist(query, queryCode, cur)}}
	for lc := top; lc >= 0; lc-- {
		found := ix.searchLayer(query, queryCode, entries, ix.cfg.EfConstruction, lc)

		m := ix.cfg.M
		if len(found) < m {
			m = len(found)
		}
		for _, c := range found[:m] {
			if c.ordinal == ordinal {
				continue
			}
			ix.connect(ordinal, c.ordinal, lc)
		}
		entries = found
	}

	if level > ix.maxLevel {
		ix.maxLevel = level
		ix.entry = int64(ordinal)
	}
	return nil
}

// connect links a and b bidirectionally at a level. When a back-edge
// would overflow M, the overloaded list is re-pruned to the M closest
// neighbors of its owner; the same input sequence always prunes the same
// way.
func (ix *Index) connect(a, b uint64, level int) {
	na, nb := ix.nodes[a], ix.nodes[b]
	if na == nil || nb == nil || level > na.level || level > nb.level {
		return
	}
	na.neighbors[level] = ix.appendBounded(a, na.neighbors[level], b)
	nb.neighbors[level] = ix.appendBounded(b, nb.neighbors[level], a)
}

// appendBounded adds target to owner's list, re-pruning to the M closest
// when the list overflows.
func (ix *Index) appendBounded(owner uint64, list []uint64, target uint64) []uint64 {
	for _, existing := range list {
		if existing == target {
			return list
		}
	}
	list = append(list, target)
	if len(list) <= ix.cfg.M {
		return list
	}

	ownerVec := ix.store.Vector(owner)
	cands := make([]candidate, 0, len(list))
	for _, ord := range list {
		cands = append(cands, candidate{ordinal: ord, dist: ix.dist(ownerVec, ix.store.Vector(ord))})
	}
	sortCandidates(cands)

	pruned := make([]uint64, 0, ix.cfg.M)
	for _, c := range cands[:ix.cfg.M] {
		pruned = append(pruned, c.ordinal)
	}
	return pruned
}

// greedyStep walks one level greedily until no neighbor improves.
func (ix *Index) greedyStep(query []float32, queryCode []byte, start uint64, level int) uint64 {
	cur := start
	curDist := ix.travDist(query, queryCode, cur)
	for {
		improved := false
		nd := ix.nodeAt(cur)
		if nd == nil || level > nd.level {
			return cur
		}
		for _, nb := range nd.neighbors[level] {
			if ix.nodeAt(nb) == nil {
				continue // stale edge
			}
			if d := ix.travDist(query, queryCode, nb); d < curDist {
				cur, curDist = nb, d
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs the bounded beam at one level and returns candidates
// sorted by traversal distance.
func (ix *Index) searchLayer(query []float32, queryCode []byte, entries []candidate, ef int, level int) []candidate {
	visited := make(map[uint64]struct{}, ef*2)

	var frontier candMinHeap
	var results candMaxHeap
	for _, e := range entries {
		if _, ok := visited[e.ordinal]; ok {
			continue
		}
		visited[e.ordinal] = struct{}{}
		heap.Push(&frontier, e)
		heap.Push(&results, e)
	}

	for frontier.Len() > 0 {
		cur := heap.Pop(&frontier).(candidate)
		if results.Len() >= ef && cur.dist > results[0].dist {
			break
		}

		nd := ix.nodeAt(cur.ordinal)
		if nd == nil || level > nd.level {
			continue
		}
		for _, nb := range nd.neighbors[level] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			if ix.nodeAt(nb) == nil {
				continue // stale edge
			}
			d := ix.travDist(query, queryCode, nb)
			if results.Len() < ef || d < results[0].dist {
				c := candidate{ordinal: nb, dist: d}
				heap.Push(&frontier, c)
				heap.Push(&results, c)
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]candidate, len(results))
	copy(out, results)
	sortCandidates(out)
	return out
}

// Search returns up to k nearest live rows.
func (ix *Index) Search(query []float32, k int, opts index.SearchOptions) ([]index.Result, error) {
	if len(query) != ix.store.Dimension() {
		return nil, verrors.DimensionMismatch(ix.store.Dimension(), len(query))
	}
	if ix.entry < 0 || k <= 0 {
		return nil, nil
	}

	ef := ix.cfg.EfSearch
	if ef < k {
		ef = k
	}
	if opts.Filtered && ix.cfg.UseACORN {
		factor := ix.cfg.ACORNHops + 1
		if factor > 3 {
			factor = 3
		}
		ef *= factor
	}

	var queryCode []byte
	if ix.cfg.UseBinaryQuant {
		queryCode = binaryCode(query)
	}

	cur := uint64(ix.entry)
	for lc := ix.maxLevel; lc > 0; lc-- {
		cur = ix.greedyStep(query, queryCode, cur, lc)
	}

	found := ix.searchLayer(query, queryCode,
		[]candidate{{ordinal: cur, dist: ix.travDist(query, queryCode, cur)}}, ef, 0)

	if queryCode != nil {
		found = ix.rerankExact(query, found)
	}

	results := make([]index.Result, 0, k)
	for _, c := range found {
		nd := ix.nodeAt(c.ordinal)
		if nd == nil || nd.deleted {
			continue
		}
		results = append(results, index.Result{Ordinal: c.ordinal, Distance: c.dist})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// rerankExact rescores the top QuantRerank quantized candidates with the
// exact metric, restoring true distance semantics.
func (ix *Index) rerankExact(query []float32, found []candidate) []candidate {
	n := ix.cfg.QuantRerank
	if n > len(found) {
		n = len(found)
	}
	rescored := make([]candidate, n)
	for i := 0; i < n; i++ {
		rescored[i] = candidate{
			ordinal: found[i].ordinal,
			dist:    ix.dist(query, ix.store.Vector(found[i].ordinal)),
		}
	}
	sortCandidates(rescored)
	return rescored
}

// RangeSearch expands the graph until no unexplored candidate within
// radius remains, then returns every in-radius live row closest first.
func (ix *Index) RangeSearch(query []float32, radius float32, maxResults int, _ index.SearchOptions) ([]index.Result, error) {
	if len(query) != ix.store.Dimension() {
		return nil, verrors.DimensionMismatch(ix.store.Dimension(), len(query))
	}
	if ix.entry < 0 {
		return nil, nil
	}

	// Descend to level 0, then seed with a beam so disconnected
	// in-radius regions near the seed are covered.
	cur := uint64(ix.entry)
	for lc := ix.maxLevel; lc > 0; lc-- {
		cur = ix.greedyStep(query, nil, cur, lc)
	}
	seed := ix.searchLayer(query, nil,
		[]candidate{{ordinal: cur, dist: ix.dist(query, ix.store.Vector(cur))}},
		ix.cfg.EfSearch, 0)

	visited := make(map[uint64]struct{})
	var frontier candMinHeap
	for _, c := range seed {
		if _, ok := visited[c.ordinal]; ok {
			continue
		}
		visited[c.ordinal] = struct{}{}
		heap.Push(&frontier, c)
	}

	var results []index.Result
	for frontier.Len() > 0 {
		c := heap.Pop(&frontier).(candidate)
		if c.dist > radius {
			// Frontier is distance-ordered: nothing within radius remains.
			break
		}

		nd := ix.nodeAt(c.ordinal)
		if nd == nil {
			continue
		}
		if !nd.deleted {
			results = append(results, index.Result{Ordinal: c.ordinal, Distance: c.dist})
		}
		for _, nb := range nd.neighbors[0] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			if ix.nodeAt(nb) == nil {
				continue
			}
			heap.Push(&frontier, candidate{ordinal: nb, dist: ix.dist(query, ix.store.Vector(nb))})
		}
	}

	index.SortResults(results)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Delete tombstones a node and compacts its ordinal out of every
// neighbor list. The entry point migrates to the first live node.
func (ix *Index) Delete(ordinal uint64) error {
	nd := ix.nodeAt(ordinal)
	if nd == nil {
		return verrors.NotFound("node", ordinal)
	}
	if nd.deleted {
		return verrors.AlreadyDeleted(ordinal)
	}
	nd.deleted = true

	for _, other := range ix.nodes {
		if other == nil || other == nd {
			continue
		}
		for lvl, list := range other.neighbors {
			for i := 0; i < len(list); {
				if list[i] == ordinal {
					list = append(list[:i], list[i+1:]...)
				} else {
					i++
				}
			}
			other.neighbors[lvl] = list
		}
	}

	if ix.entry == int64(ordinal) {
		ix.migrateEntry()
	}
	return nil
}

// migrateEntry picks the first live node as the new entry point.
func (ix *Index) migrateEntry() {
	ix.entry = -1
	ix.maxLevel = 0
	for ord, nd := range ix.nodes {
		if nd != nil && !nd.deleted {
			ix.entry = int64(ord)
			ix.maxLevel = nd.level
			return
		}
	}
}

// Update re-wires a node after an in-place vector overwrite: its stale
// edges are stripped and it is inserted afresh under the same ordinal.
func (ix *Index) Update(ordinal uint64) error {
	nd := ix.nodeAt(ordinal)
	if nd == nil {
		return verrors.NotFound("node", ordinal)
	}

	wasEntry := ix.entry == int64(ordinal)
	nd.deleted = true
	for _, other := range ix.nodes {
		if other == nil || other == nd {
			continue
		}
		for lvl, list := range other.neighbors {
			for i := 0; i < len(list); {
				if list[i] == ordinal {
					list = append(list[:i], list[i+1:]...)
				} else {
					i++
				}
			}
			other.neighbors[lvl] = list
		}
	}
	ix.nodes[ordinal] = nil
	if wasEntry {
		ix.migrateEntry()
	}

	return ix.Insert(ordinal)
}

func (ix *Index) Close() error { return nil }
