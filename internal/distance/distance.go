// Package distance implements the distance kernels used by every index:
// Euclidean, cosine, dot product, and Manhattan over float32 rows.
//
// The SIMD-accelerated paths go through github.com/viterin/vek; the scalar
// implementations define correctness and back the SIMD paths in tests.
package distance

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Metric identifies a distance metric.
type Metric string

const (
	L2        Metric = "l2"
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Manhattan Metric = "manhattan"
)

// Mismatch is the sentinel returned by every kernel on dimension mismatch.
// All real distances produced by the kernels are >= some finite value that
// callers order by; Mismatch is strictly negative and never a valid result
// for L2, cosine, or Manhattan. Callers must check before ranking dot
// distances, which are legitimately negative.
const Mismatch float32 = -1

// Func computes the distance between two vectors. Smaller is closer.
type Func func(a, b []float32) float32

// FromString parses a metric name. Returns L2 and false for unknown names.
func FromString(s string) (Metric, bool) {
	switch Metric(s) {
	case L2, Cosine, Dot, Manhattan:
		return Metric(s), true
	}
	return L2, false
}

// ForMetric returns the kernel for a metric.
func ForMetric(m Metric) Func {
	switch m {
	case Cosine:
		return CosineDistance
	case Dot:
		return DotDistance
	case Manhattan:
		return ManhattanDistance
	default:
		return L2Distance
	}
}

// L2Distance returns the Euclidean distance between a and b, always >= 0.
func L2Distance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return Mismatch
	}
	return vek32.Distance(a, b)
}

// CosineDistance returns 1 minus the cosine of the angle between a and b.
// Zero-norm inputs are treated as maximally distant.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return Mismatch
	}

	dot := vek32.Dot(a, b)
	normA := vek32.Norm(a)
	normB := vek32.Norm(b)
	if normA == 0 || normB == 0 {
		return 1
	}

	sim := dot / (normA * normB)
	// Clamp against floating point drift
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

// DotDistance returns the negated dot product so that smaller is closer.
func DotDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return Mismatch
	}
	return -vek32.Dot(a, b)
}

// ManhattanDistance returns the L1 distance between a and b.
func ManhattanDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return Mismatch
	}

	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// Normalize scales v to unit L2 norm in place. Zero vectors are unchanged.
func Normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return vek32.Norm(v)
}
