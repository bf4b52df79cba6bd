package hmc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestRandomSourceDeterminism(t *testing.T) {
	a := NewRandomSource(1234)
	b := NewRandomSource(1234)
	for i := 0; i < 100; i++ {
		if a.Uniform() != b.Uniform() {
			t.Fatal("same seed, diverging uniform streams")
		}
		if a.Normal(1, 2) != b.Normal(1, 2) {
			t.Fatal("same seed, diverging normal streams")
		}
	}
}

func TestUniformRange(t *testing.T) {
	rs := NewRandomSource(5)
	for i := 0; i < 1000; i++ {
		v := rs.UniformRange(0.5, 1.5)
		if v < 0.5 || v >= 1.5 {
			t.Fatalf("draw %g outside [0.5, 1.5)", v)
		}
	}
}

func TestNormalMoments(t *testing.T) {
	rs := NewRandomSource(17)
	const draws = 50000
	xs := make([]float64, draws)
	for i := range xs {
		xs[i] = rs.Normal(2.0, 0.5)
	}
	if mean := stat.Mean(xs, nil); math.Abs(mean-2.0) > 0.02 {
		t.Fatalf("mean %g, want 2.0", mean)
	}
	if sd := stat.StdDev(xs, nil); math.Abs(sd-0.5) > 0.02 {
		t.Fatalf("stddev %g, want 0.5", sd)
	}
}

func TestNormalVec(t *testing.T) {
	rs := NewRandomSource(23)
	mean := mat.NewVecDense(2, []float64{-1, 3})
	stds := []float64{0.1, 2.0}
	dst := mat.NewVecDense(2, nil)

	const draws = 20000
	sums := [2]float64{}
	for i := 0; i < draws; i++ {
		rs.NormalVec(dst, mean, stds)
		sums[0] += dst.AtVec(0)
		sums[1] += dst.AtVec(1)
	}
	if got := sums[0] / draws; math.Abs(got+1) > 0.05 {
		t.Fatalf("first component mean %g, want -1", got)
	}
	if got := sums[1] / draws; math.Abs(got-3) > 0.05 {
		t.Fatalf("second component mean %g, want 3", got)
	}
}

func TestNormalCholLowerTriangularProduct(t *testing.T) {
	// With L = [[2, 0], [1, 3]] the first component must be 2·z₀ and
	// the second z₀ + 3·z₁; check the implied covariance statistically.
	l := mat.NewTriDense(2, mat.Lower, []float64{2, 0, 1, 3})
	rs := NewRandomSource(31)
	dst := mat.NewVecDense(2, nil)

	const draws = 50000
	var c00, c01, c11 float64
	for i := 0; i < draws; i++ {
		rs.NormalChol(dst, l)
		c00 += dst.AtVec(0) * dst.AtVec(0)
		c01 += dst.AtVec(0) * dst.AtVec(1)
		c11 += dst.AtVec(1) * dst.AtVec(1)
	}
	c00 /= draws
	c01 /= draws
	c11 /= draws

	// L·Lᵀ = [[4, 2], [2, 10]]
	if math.Abs(c00-4) > 0.15 || math.Abs(c01-2) > 0.2 || math.Abs(c11-10) > 0.4 {
		t.Fatalf("empirical covariance [%g %g; %g %g] far from LLᵀ", c00, c01, c01, c11)
	}
}
