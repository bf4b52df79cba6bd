package hmc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func testCurvature() *mat.SymDense {
	// SPD with correlation and unequal scales.
	return mat.NewSymDense(2, []float64{4.0, 1.2, 1.2, 2.5})
}

func TestMassMatrixCholesky(t *testing.T) {
	a := testCurvature()
	for _, kind := range []MassKind{MassFull, MassDiagonal, MassIdentity} {
		mm, err := NewMassMatrix(kind, 1.0, a)
		if err != nil {
			t.Fatalf("%v: %v", kind, err)
		}
		var llt mat.Dense
		llt.Mul(mm.chol, mm.chol.T())
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if diff := math.Abs(llt.At(i, j) - mm.m.At(i, j)); diff > 1e-12 {
					t.Fatalf("%v: LLᵀ(%d,%d) = %g, M = %g", kind, i, j, llt.At(i, j), mm.m.At(i, j))
				}
			}
		}
	}
}

func TestMassMatrixInverse(t *testing.T) {
	mm, err := NewMassMatrix(MassFull, 2.0, testCurvature())
	if err != nil {
		t.Fatal(err)
	}
	p := mat.NewVecDense(2, []float64{0.7, -1.3})
	inv := mat.NewVecDense(2, nil)
	mm.ApplyInverse(inv, p, true)

	var back mat.VecDense
	back.MulVec(mm.m, inv)
	for i := 0; i < 2; i++ {
		if diff := math.Abs(back.AtVec(i) - p.AtVec(i)); diff > 1e-10 {
			t.Fatalf("M·M⁻¹p diverges at %d: %g vs %g", i, back.AtVec(i), p.AtVec(i))
		}
	}
}

func TestMassMatrixGravityScaling(t *testing.T) {
	a := testCurvature()
	one, _ := NewMassMatrix(MassFull, 1.0, a)
	ten, _ := NewMassMatrix(MassFull, 10.0, a)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if diff := math.Abs(ten.m.At(i, j) - 10*one.m.At(i, j)); diff > 1e-12 {
				t.Fatalf("gravity scaling broken at (%d,%d)", i, j)
			}
		}
	}
}

func TestKineticDiagonalAgreesOnDiagonalMass(t *testing.T) {
	mm, err := NewMassMatrix(MassDiagonal, 1.0, testCurvature())
	if err != nil {
		t.Fatal(err)
	}
	p := mat.NewVecDense(2, []float64{1.1, -0.4})
	full := mm.Kinetic(p, true)
	diag := mm.Kinetic(p, false)
	if diff := math.Abs(full - diag); diff > 1e-12 {
		t.Fatalf("kinetic energies diverge on diagonal mass: %g vs %g", full, diag)
	}
}

func TestIdentityMassKinetic(t *testing.T) {
	mm, err := NewMassMatrix(MassIdentity, 1.0, testCurvature())
	if err != nil {
		t.Fatal(err)
	}
	p := mat.NewVecDense(2, []float64{3, 4})
	want := 0.5 * 25.0
	if got := mm.Kinetic(p, true); math.Abs(got-want) > 1e-12 {
		t.Fatalf("kinetic %g, want %g", got, want)
	}
}

func TestSampleMomentumCovariance(t *testing.T) {
	mm, err := NewMassMatrix(MassFull, 1.0, testCurvature())
	if err != nil {
		t.Fatal(err)
	}
	rs := NewRandomSource(99)

	const draws = 50000
	var c00, c01, c11 float64
	p := mat.NewVecDense(2, nil)
	for i := 0; i < draws; i++ {
		mm.SampleMomentum(p, rs, true)
		c00 += p.AtVec(0) * p.AtVec(0)
		c01 += p.AtVec(0) * p.AtVec(1)
		c11 += p.AtVec(1) * p.AtVec(1)
	}
	c00 /= draws
	c01 /= draws
	c11 /= draws

	if math.Abs(c00-4.0) > 0.15 || math.Abs(c01-1.2) > 0.15 || math.Abs(c11-2.5) > 0.15 {
		t.Fatalf("empirical momentum covariance [%g %g; %g %g] far from M", c00, c01, c01, c11)
	}
}

func TestSampleMomentumDiagonal(t *testing.T) {
	mm, err := NewMassMatrix(MassFull, 1.0, testCurvature())
	if err != nil {
		t.Fatal(err)
	}
	rs := NewRandomSource(7)

	const draws = 50000
	var c00, c01 float64
	p := mat.NewVecDense(2, nil)
	for i := 0; i < draws; i++ {
		mm.SampleMomentum(p, rs, false)
		c00 += p.AtVec(0) * p.AtVec(0)
		c01 += p.AtVec(0) * p.AtVec(1)
	}
	c00 /= draws
	c01 /= draws

	// Diagonal sampling keeps the marginal variances but drops the
	// correlation.
	if math.Abs(c00-4.0) > 0.15 {
		t.Fatalf("marginal variance %g, want 4", c00)
	}
	if math.Abs(c01) > 0.1 {
		t.Fatalf("diagonal momentum draw is correlated: %g", c01)
	}
}

func TestStableStepSize(t *testing.T) {
	a := testCurvature()
	mm, err := NewMassMatrix(MassFull, 1.0, a)
	if err != nil {
		t.Fatal(err)
	}
	// M = A makes M⁻¹A the identity, so the bound is exactly 2.
	dt, err := mm.StableStepSize(a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dt-2.0) > 1e-9 {
		t.Fatalf("stable step size %g, want 2", dt)
	}

	// Gravity g scales the bound by √g.
	mm4, _ := NewMassMatrix(MassFull, 4.0, a)
	dt4, err := mm4.StableStepSize(a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dt4-4.0) > 1e-9 {
		t.Fatalf("stable step size %g at gravity 4, want 4", dt4)
	}
}

func TestParseMassKind(t *testing.T) {
	for v, want := range map[int]MassKind{0: MassFull, 1: MassDiagonal, 2: MassIdentity} {
		got, err := ParseMassKind(v)
		if err != nil || got != want {
			t.Fatalf("ParseMassKind(%d) = %v, %v", v, got, err)
		}
	}
	if _, err := ParseMassKind(3); err == nil {
		t.Fatal("ParseMassKind accepted 3")
	}
}
