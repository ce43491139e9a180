package diskann

import "sort"

// candidate pairs an ordinal with its (possibly approximate) distance.
type candidate struct {
	ordinal uint64
	dist    float32
}

func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].ordinal < cands[j].ordinal
	})
}
