package hmc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MassKind selects the shape of the mass matrix.
type MassKind int

const (
	// MassFull uses the ideal mass matrix gravity·A.
	MassFull MassKind = iota
	// MassDiagonal keeps only the diagonal of the ideal matrix.
	MassDiagonal
	// MassIdentity uses the unit matrix.
	MassIdentity
)

// ParseMassKind maps the numeric CLI encoding (0, 1, 2) onto a MassKind.
func ParseMassKind(v int) (MassKind, error) {
	switch v {
	case 0:
		return MassFull, nil
	case 1:
		return MassDiagonal, nil
	case 2:
		return MassIdentity, nil
	}
	return 0, fmt.Errorf("mass matrix type %d is not 0, 1 or 2", v)
}

func (k MassKind) String() string {
	switch k {
	case MassFull:
		return "full"
	case MassDiagonal:
		return "diagonal"
	case MassIdentity:
		return "identity"
	}
	return fmt.Sprintf("MassKind(%d)", int(k))
}

// MassMatrix holds M and every factor the sampler needs: the lower
// Cholesky factor L (M = LLᵀ), the full inverse M⁻¹ = L⁻ᵀL⁻¹, the
// diagonal and the inverted diagonal.
type MassMatrix struct {
	kind MassKind
	n    int

	m       *mat.SymDense
	chol    *mat.TriDense // L, lower
	inv     *mat.SymDense
	diagStd []float64 // √M_ii
	invDiag []float64 // 1/M_ii

	// scratch for Kinetic; not safe for concurrent use
	ipBuf *mat.VecDense
}

// NewMassMatrix builds M = gravity·A shaped by kind, plus all derived
// factors. Returns ErrNotSPD when M cannot be Cholesky-factorized.
func NewMassMatrix(kind MassKind, gravity float64, a *mat.SymDense) (*MassMatrix, error) {
	if gravity <= 0 {
		return nil, fmt.Errorf("gravity %g must be positive", gravity)
	}
	n := a.SymmetricDim()
	m := mat.NewSymDense(n, nil)
	switch kind {
	case MassFull:
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				m.SetSym(i, j, gravity*a.At(i, j))
			}
		}
	case MassDiagonal:
		for i := 0; i < n; i++ {
			m.SetSym(i, i, gravity*a.At(i, i))
		}
	case MassIdentity:
		for i := 0; i < n; i++ {
			m.SetSym(i, i, 1)
		}
	default:
		return nil, fmt.Errorf("mass matrix kind %v", kind)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		return nil, fmt.Errorf("mass matrix (%v): %w", kind, ErrNotSPD)
	}
	l := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(l)

	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("mass matrix (%v): %w", kind, ErrNotSPD)
	}

	mm := &MassMatrix{
		kind:    kind,
		n:       n,
		m:       m,
		chol:    l,
		inv:     inv,
		diagStd: make([]float64, n),
		invDiag: make([]float64, n),
		ipBuf:   mat.NewVecDense(n, nil),
	}
	for i := 0; i < n; i++ {
		d := m.At(i, i)
		mm.diagStd[i] = math.Sqrt(d)
		mm.invDiag[i] = 1 / d
	}
	return mm, nil
}

// Kind returns the configured mass matrix shape.
func (mm *MassMatrix) Kind() MassKind { return mm.kind }

// Dim returns the phase-space dimension N.
func (mm *MassMatrix) Dim() int { return mm.n }

// SampleMomentum fills dst with a momentum draw. With full set the draw
// is L·z, distributed N(0, M); otherwise each component is drawn
// independently with variance M_ii.
func (mm *MassMatrix) SampleMomentum(dst *mat.VecDense, rs *RandomSource, full bool) {
	if full {
		rs.NormalChol(dst, mm.chol)
		return
	}
	for i := 0; i < mm.n; i++ {
		dst.SetVec(i, rs.Normal(0, mm.diagStd[i]))
	}
}

// Kinetic evaluates ½ pᵀM⁻¹p with full set, ½ pᵀ diag(1/M_ii) p
// otherwise.
func (mm *MassMatrix) Kinetic(p *mat.VecDense, full bool) float64 {
	if full {
		mm.ipBuf.MulVec(mm.inv, p)
		return 0.5 * mat.Dot(p, mm.ipBuf)
	}
	sum := 0.0
	for i := 0; i < mm.n; i++ {
		v := p.AtVec(i)
		sum += v * v * mm.invDiag[i]
	}
	return 0.5 * sum
}

// ApplyInverse writes M⁻¹p (full) or diag(1/M_ii)·p into dst. This is
// the drift velocity of the leap-frog scheme.
func (mm *MassMatrix) ApplyInverse(dst, p *mat.VecDense, full bool) {
	if full {
		dst.MulVec(mm.inv, p)
		return
	}
	for i := 0; i < mm.n; i++ {
		dst.SetVec(i, p.AtVec(i)*mm.invDiag[i])
	}
}

// StableStepSize returns the leap-frog stability bound 2/√λ_max where
// λ_max is the largest eigenvalue of M⁻¹A, computed from the similar
// symmetric matrix L⁻¹AL⁻ᵀ.
func (mm *MassMatrix) StableStepSize(a *mat.SymDense) (float64, error) {
	n := mm.n
	if a.SymmetricDim() != n {
		return 0, fmt.Errorf("curvature matrix is %dx%d for dimension %d: %w",
			a.SymmetricDim(), a.SymmetricDim(), n, ErrDimension)
	}

	linv := mat.NewTriDense(n, mat.Lower, nil)
	if err := linv.InverseTri(mm.chol); err != nil {
		return 0, fmt.Errorf("mass matrix Cholesky factor is singular: %w", ErrNotSPD)
	}
	var la, lalt mat.Dense
	la.Mul(linv, a)
	lalt.Mul(&la, linv.T())

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(lalt.At(i, j)+lalt.At(j, i)))
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return 0, fmt.Errorf("eigendecomposition of M⁻¹A failed: %w", ErrNotSPD)
	}
	vals := eig.Values(nil)
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return 0, fmt.Errorf("M⁻¹A has no positive eigenvalue: %w", ErrNotSPD)
	}
	return 2 / math.Sqrt(max), nil
}
