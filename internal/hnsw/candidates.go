package hnsw

import "sort"

// candidate pairs an ordinal with its distance to the current query.
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

// candMinHeap pops the closest candidate first (expansion frontier).
type candMinHeap []candidate

func (h candMinHeap) Len() int      { return len(h) }
func (h candMinHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h candMinHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].ordinal < h[j].ordinal
}
func (h *candMinHeap) Push(x any) { *h = append(*h, x.(candidate)) }
func (h *candMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// candMaxHeap keeps the ef best candidates, worst on top for eviction.
type candMaxHeap []candidate

func (h candMaxHeap) Len() int      { return len(h) }
func (h candMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h candMaxHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].ordinal > h[j].ordinal
}
func (h *candMaxHeap) Push(x any) { *h = append(*h, x.(candidate)) }
func (h *candMaxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
