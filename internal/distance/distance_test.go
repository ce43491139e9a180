package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2Distance_Basics(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{0, 1, 0, 0}

	// Distance to self is zero, cross distance is sqrt(2)
	assert.InDelta(t, 0, L2Distance(a, a), 1e-6)
	assert.InDelta(t, math.Sqrt2, L2Distance(a, b), 1e-5)
}

func TestCosineDistance_Basics(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{0, 1, 0, 0}
	c := []float32{2, 0, 0, 0}

	// cosine(v, v) = 0 regardless of magnitude
	assert.InDelta(t, 0, CosineDistance(a, a), 1e-6)
	assert.InDelta(t, 0, CosineDistance(a, c), 1e-6)
	// Orthogonal vectors are at distance 1
	assert.InDelta(t, 1, CosineDistance(a, b), 1e-6)
}

func TestCosineDistance_ZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.InDelta(t, 1, CosineDistance(a, b), 1e-6)
}

func TestDotDistance_RoundTripLaw(t *testing.T) {
	// dot(v, v) = sum(v_i^2); the kernel negates so smaller = closer
	v := []float32{1, 2, 3, 4}
	want := float32(-(1 + 4 + 9 + 16))
	assert.InDelta(t, want, DotDistance(v, v), 1e-4)
}

func TestManhattanDistance(t *testing.T) {
	a := []float32{1, -2, 3}
	b := []float32{-1, 2, 0}
	assert.InDelta(t, 2+4+3, ManhattanDistance(a, b), 1e-6)
}

func TestKernels_DimensionMismatchSentinel(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}

	for name, fn := range map[string]Func{
		"l2":        L2Distance,
		"cosine":    CosineDistance,
		"dot":       DotDistance,
		"manhattan": ManhattanDistance,
	} {
		assert.Negative(t, fn(a, b), name)
		assert.Negative(t, fn(nil, nil), name)
	}
}

func TestSIMDAgreesWithScalar(t *testing.T) {
	// Given: random vectors across a few dimensions
	rng := rand.New(rand.NewSource(42))
	for _, dim := range []int{3, 8, 64, 257} {
		a := make([]float32, dim)
		b := make([]float32, dim)
		for i := range a {
			a[i] = rng.Float32()*2 - 1
			b[i] = rng.Float32()*2 - 1
		}

		// Then: accelerated kernels agree with the scalar reference
		assert.InDelta(t, float64(l2Scalar(a, b)), float64(L2Distance(a, b)), 1e-3)
		assert.InDelta(t, float64(-dotScalar(a, b)), float64(DotDistance(a, b)), 1e-3)
		assert.InDelta(t, float64(cosineScalar(a, b)), float64(CosineDistance(a, b)), 1e-3)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{2, 0, 0, 0}
	Normalize(v)
	assert.InDelta(t, 1, Norm(v), 1e-6)
	assert.InDelta(t, 1, v[0], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestForMetric(t *testing.T) {
	q := []float32{1, 0}
	v := []float32{0, 1}

	assert.InDelta(t, float64(L2Distance(q, v)), float64(ForMetric(L2)(q, v)), 1e-6)
	assert.InDelta(t, float64(CosineDistance(q, v)), float64(ForMetric(Cosine)(q, v)), 1e-6)

	m, ok := FromString("cosine")
	require.True(t, ok)
	assert.Equal(t, Cosine, m)

	_, ok = FromString("hamming")
	assert.False(t, ok)
}
