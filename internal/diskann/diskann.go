// Package diskann implements a Vamana graph index designed for
// SSD-resident vectors: full rows live in a sector-aligned backing file
// behind an LRU page cache, while RAM holds only the adjacency lists and
// product-quantized codes that steer the beam search.
package diskann

import (
	"sort"

	"github.com/vektordb/vektor/internal/distance"
	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
	"github.com/vektordb/vektor/internal/vecstore"
)

// Config tunes the index.
type Config struct {
	// MaxDegree caps out-neighbors per node.
	MaxDegree int
	// Alpha is the robust-pruning distance threshold multiplier.
	Alpha float64
	// BuildBeamWidth is the beam width during construction.
	BuildBeamWidth int
	// SearchBeamWidth is the beam width during queries.
	SearchBeamWidth int
	// PQDim is the sub-quantizer count; 0 picks automatically.
	PQDim int
	// DataPath is the backing file for full vectors.
	DataPath string
	// CacheSizeMB bounds the page cache.
	CacheSizeMB int
	// SectorSize aligns slots on disk.
	SectorSize int
}

// DefaultConfig returns the standard tuning for the given data path.
func DefaultConfig(dataPath string) Config {
	return Config{
		MaxDegree:       32,
		Alpha:           1.2,
		BuildBeamWidth:  64,
		SearchBeamWidth: 32,
		DataPath:        dataPath,
		CacheSizeMB:     64,
		SectorSize:      4096,
	}
}

// pqTrainSample caps how many rows feed Lloyd's algorithm.
const pqTrainSample = 16384

type dnode struct {
	neighbors []uint64
	code      []byte // nil until PQ is trained
	deleted   bool
}

// Index is the DiskANN/Vamana index.
type Index struct {
	store  *vecstore.Store
	metric distance.Metric
	dist   distance.Func
	cfg    Config

	disk   *diskStore
	pq     *ProductQuantizer
	nodes  []*dnode
	medoid int64
}

// New creates an empty index; the backing file is created eagerly so
// open failures surface at construction.
func New(store *vecstore.Store, metric distance.Metric, cfg Config) (*Index, error) {
	if cfg.MaxDegree <= 0 {
		cfg.MaxDegree = 32
	}
	if cfg.Alpha < 1 {
		cfg.Alpha = 1.2
	}
	if cfg.BuildBeamWidth <= 0 {
		cfg.BuildBeamWidth = 64
	}
	if cfg.SearchBeamWidth <= 0 {
		cfg.SearchBeamWidth = 32
	}
	if cfg.SectorSize <= 0 {
		cfg.SectorSize = 4096
	}
	if cfg.CacheSizeMB <= 0 {
		cfg.CacheSizeMB = 64
	}
	if cfg.DataPath == "" {
		return nil, verrors.InvalidArgument("diskann requires a data path")
	}

	disk, err := newDiskStore(cfg.DataPath, store.Dimension(), cfg.SectorSize, cfg.CacheSizeMB)
	if err != nil {
		return nil, err
	}

	return &Index{
		store:  store,
		metric: metric,
		dist:   distance.ForMetric(metric),
		cfg:    cfg,
		disk:   disk,
		medoid: -1,
	}, nil
}

func (ix *Index) Kind() index.Kind { return index.KindDiskANN }

// Medoid returns the current entry ordinal, -1 when empty.
func (ix *Index) Medoid() int64 { return ix.medoid }

// EdgeCount returns the total directed edge count.
func (ix *Index) EdgeCount() int {
	var n int
	for _, nd := range ix.nodes {
		if nd != nil {
			n += len(nd.neighbors)
		}
	}
	return n
}

func (ix *Index) ensureArena(ordinal uint64) {
	for uint64(len(ix.nodes)) <= ordinal {
		ix.nodes = append(ix.nodes, nil)
	}
}

func (ix *Index) nodeAt(ordinal uint64) *dnode {
	if ordinal >= uint64(len(ix.nodes)) {
		return nil
	}
	return ix.nodes[ordinal]
}

// approxDist scores a candidate during traversal: PQ when a code exists,
// otherwise the exact metric against the disk-resident row.
func (ix *Index) approxDist(query []float32, ordinal uint64) float32 {
	if nd := ix.nodeAt(ordinal); nd != nil && nd.code != nil && ix.pq != nil {
		return ix.pq.Distance(query, nd.code)
	}
	vector, err := ix.disk.readVector(ordinal)
	if err != nil {
		// The SoA store stays authoritative if the slot is unreadable.
		vector = ix.store.Vector(ordinal)
	}
	return ix.dist(query, vector)
}

// exactDist reads the full row from disk and applies the exact metric.
func (ix *Index) exactDist(query []float32, ordinal uint64) float32 {
	vector, err := ix.disk.readVector(ordinal)
	if err != nil {
		vector = ix.store.Vector(ordinal)
	}
	return ix.dist(query, vector)
}

// beamSearch runs the greedy beam from the medoid: a sorted candidate
// array capped at 2*beamWidth, explored front to back until the pointer
// reaches the end, visited rows tracked in a bitset.
func (ix *Index) beamSearch(query []float32, beamWidth, maxVisited int) []candidate {
	if ix.medoid < 0 {
		return nil
	}
	capacity := 2 * beamWidth

	visited := make([]bool, ix.store.Count())
	cands := make([]candidate, 0, capacity+1)
	cands = append(cands, candidate{ordinal: uint64(ix.medoid), dist: ix.approxDist(query, uint64(ix.medoid))})
	visited[ix.medoid] = true

	var out []candidate
	for i := 0; i < len(cands); i++ {
		c := cands[i]
		out = append(out, c)
		if len(out) >= maxVisited {
			break
		}

		nd := ix.nodeAt(c.ordinal)
		if nd == nil {
			continue
		}
		for _, nb := range nd.neighbors {
			if nb >= uint64(len(visited)) || visited[nb] {
				continue // stale edge or revisit
			}
			visited[nb] = true
			if ix.nodeAt(nb) == nil {
				continue
			}
			d := ix.approxDist(query, nb)

			// Insert into the sorted region past the exploration pointer.
			pos := sort.Search(len(cands), func(j int) bool {
				if cands[j].dist != d {
					return cands[j].dist > d
				}
				return cands[j].ordinal > nb
			})
			if pos <= i {
				pos = i + 1
			}
			cands = append(cands, candidate{})
			copy(cands[pos+1:], cands[pos:])
			cands[pos] = candidate{ordinal: nb, dist: d}
			if len(cands) > capacity {
				cands = cands[:capacity]
			}
		}
	}
	return out
}

// robustPrune selects up to MaxDegree neighbors for v from sorted
// candidates: once c_i is selected, any later c_j closer to c_i than
// dist(c_j, v)/alpha is redundant. Inter-candidate distances use the
// exact metric on both sides for a single consistent rule.
func (ix *Index) robustPrune(v uint64, cands []candidate) []uint64 {
	sortCandidates(cands)

	selected := make([]uint64, 0, ix.cfg.MaxDegree)
	pruned := make([]bool, len(cands))
	vVec := ix.store.Vector(v)

	for i, c := range cands {
		if pruned[i] || c.ordinal == v {
			continue
		}
		selected = append(selected, c.ordinal)
		if len(selected) >= ix.cfg.MaxDegree {
			break
		}

		cVec := ix.store.Vector(c.ordinal)
		for j := i + 1; j < len(cands); j++ {
			if pruned[j] || cands[j].ordinal == v {
				continue
			}
			dToSelected := ix.dist(cVec, ix.store.Vector(cands[j].ordinal))
			dToV := ix.dist(vVec, ix.store.Vector(cands[j].ordinal))
			if float64(dToSelected) <= float64(dToV)/ix.cfg.Alpha {
				pruned[j] = true
			}
		}
	}
	return selected
}

// Build streams every live row to disk, computes the medoid, trains and
// applies PQ, seeds sequential adjacency, then runs two Vamana passes.
func (ix *Index) Build() error {
	count := ix.store.Count()
	ix.nodes = make([]*dnode, count)
	ix.medoid = -1
	ix.pq = nil

	var live []uint64
	ix.store.ForEachLive(func(ord uint64, vector []float32, _ []vecstore.Pair) bool {
		live = append(live, ord)
		return true
	})
	if len(live) == 0 {
		return nil
	}

	// 1. Stream vectors to their slots.
	for _, ord := range live {
		if err := ix.disk.writeVector(ord, ix.store.Vector(ord)); err != nil {
			return err
		}
		ix.nodes[ord] = &dnode{}
	}
	if err := ix.disk.sync(); err != nil {
		return err
	}

	// 2. Medoid: the row closest to the centroid.
	ix.medoid = int64(ix.computeMedoid(live))

	// 3. Product quantization.
	if err := ix.trainPQ(live); err != nil {
		return err
	}

	// 4. Sequential bootstrap adjacency.
	for i, ord := range live {
		nd := ix.nodes[ord]
		for j := 1; j <= ix.cfg.MaxDegree && j < len(live); j++ {
			nd.neighbors = append(nd.neighbors, live[(i+j)%len(live)])
		}
	}

	// 5. Two Vamana refinement passes.
	for pass := 0; pass < 2; pass++ {
		for _, ord := range live {
			ix.refineNode(ord)
		}
	}
	return nil
}

// computeMedoid finds the live row closest to the centroid.
func (ix *Index) computeMedoid(live []uint64) uint64 {
	dim := ix.store.Dimension()
	centroid := make([]float32, dim)
	sums := make([]float64, dim)
	for _, ord := range live {
		for d, v := range ix.store.Vector(ord) {
			sums[d] += float64(v)
		}
	}
	for d := range centroid {
		centroid[d] = float32(sums[d] / float64(len(live)))
	}

	best := live[0]
	bestDist := ix.dist(centroid, ix.store.Vector(best))
	for _, ord := range live[1:] {
		if d := ix.dist(centroid, ix.store.Vector(ord)); d < bestDist {
			best, bestDist = ord, d
		}
	}
	return best
}

// trainPQ fits codebooks on a sample of live rows and encodes them all.
func (ix *Index) trainPQ(live []uint64) error {
	sample := live
	if len(sample) > pqTrainSample {
		sample = sample[:pqTrainSample]
	}
	training := make([][]float32, len(sample))
	for i, ord := range sample {
		training[i] = ix.store.Vector(ord)
	}

	pq, err := TrainPQ(training, ix.store.Dimension(), ix.cfg.PQDim)
	if err != nil {
		return err
	}
	ix.pq = pq

	for _, ord := range live {
		ix.nodes[ord].code = pq.Encode(ix.store.Vector(ord))
	}
	return nil
}

// refineNode runs one Vamana step: beam-search for the node's own
// vector, union with current neighbors, robust-prune, write back, then
// install back-edges where capacity allows.
func (ix *Index) refineNode(ordinal uint64) {
	nd := ix.nodes[ordinal]
	vector := ix.store.Vector(ordinal)

	found := ix.beamSearch(vector, ix.cfg.BuildBeamWidth, 2*ix.cfg.BuildBeamWidth)

	seen := make(map[uint64]struct{}, len(found)+len(nd.neighbors))
	cands := make([]candidate, 0, len(found)+len(nd.neighbors))
	for _, c := range found {
		if c.ordinal == ordinal {
			continue
		}
		if _, dup := seen[c.ordinal]; dup {
			continue
		}
		seen[c.ordinal] = struct{}{}
		cands = append(cands, candidate{ordinal: c.ordinal, dist: ix.dist(vector, ix.store.Vector(c.ordinal))})
	}
	for _, nb := range nd.neighbors {
		if _, dup := seen[nb]; dup || ix.nodeAt(nb) == nil {
			continue
		}
		seen[nb] = struct{}{}
		cands = append(cands, candidate{ordinal: nb, dist: ix.dist(vector, ix.store.Vector(nb))})
	}

	nd.neighbors = ix.robustPrune(ordinal, cands)

	for _, nb := range nd.neighbors {
		ix.addBackEdge(nb, ordinal)
	}
}

// addBackEdge links to -> from when the target has spare capacity; a
// full target drops the edge.
func (ix *Index) addBackEdge(to, from uint64) {
	nd := ix.nodeAt(to)
	if nd == nil {
		return
	}
	for _, existing := range nd.neighbors {
		if existing == from {
			return
		}
	}
	if len(nd.neighbors) < ix.cfg.MaxDegree {
		nd.neighbors = append(nd.neighbors, from)
	}
}

// Insert appends a row: slot write, PQ encode, beam search, prune,
// back-edges.
func (ix *Index) Insert(ordinal uint64) error {
	if ordinal >= ix.store.Count() {
		return verrors.NotFound("row", ordinal)
	}

	ix.ensureArena(ordinal)
	vector := ix.store.Vector(ordinal)
	if err := ix.disk.writeVector(ordinal, vector); err != nil {
		return err
	}

	nd := &dnode{}
	if ix.pq != nil {
		nd.code = ix.pq.Encode(vector)
	}
	ix.nodes[ordinal] = nd

	if ix.medoid < 0 {
		ix.medoid = int64(ordinal)
		return nil
	}

	found := ix.beamSearch(vector, ix.cfg.BuildBeamWidth, 2*ix.cfg.BuildBeamWidth)
	cands := make([]candidate, 0, len(found))
	for _, c := range found {
		if c.ordinal == ordinal {
			continue
		}
		cands = append(cands, candidate{ordinal: c.ordinal, dist: ix.dist(vector, ix.store.Vector(c.ordinal))})
	}

	nd.neighbors = ix.robustPrune(ordinal, cands)
	for _, nb := range nd.neighbors {
		ix.addBackEdge(nb, ordinal)
	}
	return nil
}

// Delete tombstones the node; stale in-edges are filtered at emission.
// A deleted medoid is replaced by the first live node.
func (ix *Index) Delete(ordinal uint64) error {
	nd := ix.nodeAt(ordinal)
	if nd == nil {
		return verrors.NotFound("node", ordinal)
	}
	if nd.deleted {
		return verrors.AlreadyDeleted(ordinal)
	}
	nd.deleted = true

	if ix.medoid == int64(ordinal) {
		ix.medoid = -1
		for ord, other := range ix.nodes {
			if other != nil && !other.deleted {
				ix.medoid = int64(ord)
				break
			}
		}
	}
	return nil
}

// Update rewrites the row's slot and code and re-computes its
// out-neighbors; in-edges keep pointing at the moved row.
func (ix *Index) Update(ordinal uint64) error {
	nd := ix.nodeAt(ordinal)
	if nd == nil {
		return verrors.NotFound("node", ordinal)
	}

	vector := ix.store.Vector(ordinal)
	if err := ix.disk.writeVector(ordinal, vector); err != nil {
		return err
	}
	if ix.pq != nil {
		nd.code = ix.pq.Encode(vector)
	}

	found := ix.beamSearch(vector, ix.cfg.BuildBeamWidth, 2*ix.cfg.BuildBeamWidth)
	cands := make([]candidate, 0, len(found))
	for _, c := range found {
		if c.ordinal == ordinal {
			continue
		}
		cands = append(cands, candidate{ordinal: c.ordinal, dist: ix.dist(vector, ix.store.Vector(c.ordinal))})
	}
	nd.neighbors = ix.robustPrune(ordinal, cands)
	for _, nb := range nd.neighbors {
		ix.addBackEdge(nb, ordinal)
	}
	return nil
}

// Search beam-searches with PQ distances, then re-scores the survivors
// with exact reads from disk.
func (ix *Index) Search(query []float32, k int, _ index.SearchOptions) ([]index.Result, error) {
	if len(query) != ix.store.Dimension() {
		return nil, verrors.DimensionMismatch(ix.store.Dimension(), len(query))
	}
	if ix.medoid < 0 || k <= 0 {
		return nil, nil
	}

	maxVisited := 2 * ix.cfg.SearchBeamWidth
	if maxVisited < 2*k {
		maxVisited = 2 * k
	}
	found := ix.beamSearch(query, ix.cfg.SearchBeamWidth, maxVisited)

	results := make([]index.Result, 0, len(found))
	for _, c := range found {
		nd := ix.nodeAt(c.ordinal)
		if nd == nil || nd.deleted {
			continue
		}
		results = append(results, index.Result{Ordinal: c.ordinal, Distance: ix.exactDist(query, c.ordinal)})
	}

	index.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RangeSearch widens the beam, re-scores exactly, and keeps rows within
// radius.
func (ix *Index) RangeSearch(query []float32, radius float32, maxResults int, _ index.SearchOptions) ([]index.Result, error) {
	if len(query) != ix.store.Dimension() {
		return nil, verrors.DimensionMismatch(ix.store.Dimension(), len(query))
	}
	if ix.medoid < 0 {
		return nil, nil
	}

	found := ix.beamSearch(query, 2*ix.cfg.SearchBeamWidth, 4*ix.cfg.SearchBeamWidth)

	var results []index.Result
	for _, c := range found {
		nd := ix.nodeAt(c.ordinal)
		if nd == nil || nd.deleted {
			continue
		}
		if d := ix.exactDist(query, c.ordinal); d <= radius {
			results = append(results, index.Result{Ordinal: c.ordinal, Distance: d})
		}
	}

	index.SortResults(results)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// CacheLen reports resident cache pages.
func (ix *Index) CacheLen() int { return ix.disk.cacheLen() }

func (ix *Index) Close() error { return ix.disk.close() }
