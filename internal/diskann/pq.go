package diskann

import (
	"io"
	"math"

	verrors "github.com/vektordb/vektor/internal/errors"
	"github.com/vektordb/vektor/internal/index"
)

// ProductQuantizer compresses vectors into m one-byte codes, one per
// sub-space. Centroids are trained with Lloyd's algorithm from linearly
// spaced seeds; ksub is 256 unless the training set is smaller.
type ProductQuantizer struct {
	m    int // sub-quantizer count
	dsub int // dimensions per sub-space
	ksub int // centroids per sub-space

	// centroids[s] holds ksub*dsub floats for sub-space s.
	centroids [][]float32
}

const lloydIterations = 10

// autoSubQuantizers picks the first of 16, 8, 4, 2 that divides dim, or
// 1 when none does.
func autoSubQuantizers(dim int) int {
	for _, m := range []int{16, 8, 4, 2} {
		if dim%m == 0 && dim/m >= 1 {
			return m
		}
	}
	return 1
}

// TrainPQ builds a quantizer from the training rows. m == 0 selects the
// sub-space count automatically from the dimension.
func TrainPQ(training [][]float32, dim, m int) (*ProductQuantizer, error) {
	if len(training) == 0 {
		return nil, verrors.NotTrained("product quantizer needs a non-empty training set")
	}
	if m == 0 {
		m = autoSubQuantizers(dim)
	}
	if dim%m != 0 {
		return nil, verrors.InvalidArgument("pq sub-quantizer count must divide the dimension")
	}

	pq := &ProductQuantizer{
		m:    m,
		dsub: dim / m,
		ksub: 256,
	}
	if len(training) < pq.ksub {
		pq.ksub = len(training)
	}

	pq.centroids = make([][]float32, m)
	for s := 0; s < m; s++ {
		pq.centroids[s] = pq.trainSubspace(training, s)
	}
	return pq, nil
}

// trainSubspace runs Lloyd's algorithm over one sub-space.
func (pq *ProductQuantizer) trainSubspace(training [][]float32, s int) []float32 {
	n := len(training)
	offset := s * pq.dsub

	// Linearly spaced seeds across the training set.
	cents := make([]float32, pq.ksub*pq.dsub)
	for j := 0; j < pq.ksub; j++ {
		src := training[j*n/pq.ksub][offset : offset+pq.dsub]
		copy(cents[j*pq.dsub:], src)
	}

	sums := make([]float64, pq.ksub*pq.dsub)
	counts := make([]int, pq.ksub)

	for iter := 0; iter < lloydIterations; iter++ {
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}

		for _, row := range training {
			sub := row[offset : offset+pq.dsub]
			best, bestDist := 0, float32(math.MaxFloat32)
			for j := 0; j < pq.ksub; j++ {
				d := subL2Sq(sub, cents[j*pq.dsub:(j+1)*pq.dsub])
				if d < bestDist {
					best, bestDist = j, d
				}
			}
			counts[best]++
			for d, v := range sub {
				sums[best*pq.dsub+d] += float64(v)
			}
		}

		for j := 0; j < pq.ksub; j++ {
			if counts[j] == 0 {
				continue // keep the stale centroid
			}
			for d := 0; d < pq.dsub; d++ {
				cents[j*pq.dsub+d] = float32(sums[j*pq.dsub+d] / float64(counts[j]))
			}
		}
	}
	return cents
}

func subL2Sq(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SubQuantizers returns m.
func (pq *ProductQuantizer) SubQuantizers() int { return pq.m }

// Encode produces the m-byte code for a vector.
func (pq *ProductQuantizer) Encode(vector []float32) []byte {
	code := make([]byte, pq.m)
	for s := 0; s < pq.m; s++ {
		offset := s * pq.dsub
		sub := vector[offset : offset+pq.dsub]
		cents := pq.centroids[s]
		best, bestDist := 0, float32(math.MaxFloat32)
		for j := 0; j < pq.ksub; j++ {
			d := subL2Sq(sub, cents[j*pq.dsub:(j+1)*pq.dsub])
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		code[s] = byte(best)
	}
	return code
}

// Distance approximates the distance between a query and an encoded row:
// the sum over sub-spaces of the L2 distance from the query sub-vector
// to the code's centroid.
func (pq *ProductQuantizer) Distance(query []float32, code []byte) float32 {
	var sum float64
	for s := 0; s < pq.m; s++ {
		offset := s * pq.dsub
		j := int(code[s])
		d := subL2Sq(query[offset:offset+pq.dsub], pq.centroids[s][j*pq.dsub:(j+1)*pq.dsub])
		sum += math.Sqrt(float64(d))
	}
	return float32(sum)
}

// save writes the codebooks.
func (pq *ProductQuantizer) save(w io.Writer) error {
	if err := index.WriteU32(w, uint32(pq.m)); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(pq.dsub)); err != nil {
		return err
	}
	if err := index.WriteU32(w, uint32(pq.ksub)); err != nil {
		return err
	}
	for s := 0; s < pq.m; s++ {
		if err := index.WriteVector(w, pq.centroids[s]); err != nil {
			return err
		}
	}
	return nil
}

// loadPQ reads codebooks written by save.
func loadPQ(r io.Reader) (*ProductQuantizer, error) {
	m, err := index.ReadU32(r)
	if err != nil {
		return nil, err
	}
	dsub, err := index.ReadU32(r)
	if err != nil {
		return nil, err
	}
	ksub, err := index.ReadU32(r)
	if err != nil {
		return nil, err
	}
	if m == 0 || dsub == 0 || ksub == 0 || ksub > 256 {
		return nil, verrors.FormatError("pq codebook header out of range")
	}

	pq := &ProductQuantizer{m: int(m), dsub: int(dsub), ksub: int(ksub)}
	pq.centroids = make([][]float32, m)
	for s := range pq.centroids {
		cents, err := index.ReadVector(r, pq.ksub*pq.dsub)
		if err != nil {
			return nil, err
		}
		pq.centroids[s] = cents
	}
	return pq, nil
}
