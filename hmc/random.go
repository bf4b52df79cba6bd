package hmc

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// RandomSource is the single pseudo-random generator behind the sampler.
// All randomness (momentum draws, prior proposals, acceptance tests,
// ergodic jitter) flows through one instance so that a fixed seed makes a
// whole run reproducible. It is not safe for concurrent use; the sampler
// is strictly sequential.
type RandomSource struct {
	rng  *rand.Rand
	zBuf []float64
}

// NewRandomSource creates a generator seeded with seed. A zero seed
// falls back to wall-clock time.
func NewRandomSource(seed int64) *RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSource{rng: rand.New(rand.NewSource(seed))}
}

// Uniform returns a draw from U(0,1).
func (r *RandomSource) Uniform() float64 {
	return r.rng.Float64()
}

// UniformRange returns a draw from U(lo,hi).
func (r *RandomSource) UniformRange(lo, hi float64) float64 {
	return lo + (hi-lo)*r.rng.Float64()
}

// Normal returns a draw from N(mean, std²).
func (r *RandomSource) Normal(mean, std float64) float64 {
	return mean + std*r.rng.NormFloat64()
}

// NormalVec fills dst with independent draws, dst_i ~ N(mean_i, std_i²).
func (r *RandomSource) NormalVec(dst *mat.VecDense, mean mat.Vector, std []float64) {
	n := dst.Len()
	for i := 0; i < n; i++ {
		dst.SetVec(i, mean.AtVec(i)+std[i]*r.rng.NormFloat64())
	}
}

// NormalChol fills dst with a zero-mean draw whose covariance is L·Lᵀ,
// computed as L·z with z_i ~ N(0,1).
func (r *RandomSource) NormalChol(dst *mat.VecDense, l *mat.TriDense) {
	n := dst.Len()
	if cap(r.zBuf) < n {
		r.zBuf = make([]float64, n)
	}
	z := r.zBuf[:n]
	for i := range z {
		z[i] = r.rng.NormFloat64()
	}
	// Lower-triangular product, row by row.
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += l.At(i, j) * z[j]
		}
		dst.SetVec(i, sum)
	}
}
