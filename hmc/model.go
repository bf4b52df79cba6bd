package hmc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Prior holds the Gaussian prior N(mean, cov) together with the inverse
// covariance and the per-parameter standard deviations used for
// prior-based proposals.
type Prior struct {
	Mean   *mat.VecDense
	Cov    *mat.SymDense
	InvCov *mat.SymDense

	stds []float64
}

// NewPrior builds a prior from a mean and an SPD covariance matrix.
// Returns ErrNotSPD when the covariance cannot be Cholesky-factorized.
func NewPrior(mean *mat.VecDense, cov *mat.SymDense) (*Prior, error) {
	n := mean.Len()
	if cov.SymmetricDim() != n {
		return nil, fmt.Errorf("prior covariance is %dx%d for %d parameters: %w",
			cov.SymmetricDim(), cov.SymmetricDim(), n, ErrDimension)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("prior covariance: %w", ErrNotSPD)
	}
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("prior covariance: %w", ErrNotSPD)
	}

	stds := make([]float64, n)
	for i := 0; i < n; i++ {
		stds[i] = math.Sqrt(cov.At(i, i))
	}
	return &Prior{Mean: mean, Cov: cov, InvCov: inv, stds: stds}, nil
}

// NewDiagonalPrior builds a prior with a diagonal covariance diag(std²).
func NewDiagonalPrior(means, stds []float64) (*Prior, error) {
	if len(means) != len(stds) {
		return nil, fmt.Errorf("%d means for %d standard deviations: %w",
			len(means), len(stds), ErrDimension)
	}
	n := len(means)
	cov := mat.NewSymDense(n, nil)
	for i, s := range stds {
		if s <= 0 {
			return nil, fmt.Errorf("standard deviation %g at parameter %d: %w", s, i, ErrNotSPD)
		}
		cov.SetSym(i, i, s*s)
	}
	return NewPrior(mat.NewVecDense(n, means), cov)
}

// Dim returns the number of model parameters.
func (p *Prior) Dim() int { return p.Mean.Len() }

// Data holds the observed data and the inverse data covariance.
type Data struct {
	Observed *mat.VecDense
	InvCov   *mat.SymDense
}

// NewData pairs observations with an SPD inverse covariance.
func NewData(observed *mat.VecDense, invCov *mat.SymDense) (*Data, error) {
	m := observed.Len()
	if invCov.SymmetricDim() != m {
		return nil, fmt.Errorf("data covariance is %dx%d for %d observations: %w",
			invCov.SymmetricDim(), invCov.SymmetricDim(), m, ErrDimension)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(invCov); !ok {
		return nil, fmt.Errorf("inverse data covariance: %w", ErrNotSPD)
	}
	return &Data{Observed: observed, InvCov: invCov}, nil
}

// NewDataWithStd builds Data with Σ_d⁻¹ = diag(1/std²), a uniform
// uncorrelated noise level across all observations.
func NewDataWithStd(observed *mat.VecDense, std float64) (*Data, error) {
	if std <= 0 {
		return nil, fmt.Errorf("data standard deviation %g: %w", std, ErrNotSPD)
	}
	m := observed.Len()
	inv := mat.NewSymDense(m, nil)
	w := 1 / (std * std)
	for i := 0; i < m; i++ {
		inv.SetSym(i, i, w)
	}
	return &Data{Observed: observed, InvCov: inv}, nil
}

// LinearModel evaluates the misfit
//
//	χ(m) = ½ (m−μ)ᵀ Σ_m⁻¹ (m−μ) + ½ (Gm−d)ᵀ Σ_d⁻¹ (Gm−d)
//
// through the precomputed quadratic form χ(m) = ½ mᵀAm − bᵀm + c with
// A = Σ_m⁻¹ + Gᵀ Σ_d⁻¹ G, so that misfit and gradient are one
// symmetric matrix-vector product each instead of passing through G.
type LinearModel struct {
	prior *Prior

	n int
	a *mat.SymDense
	b *mat.VecDense
	c float64

	// scratch for the hot path; the model is not safe for concurrent use
	av *mat.VecDense
}

// NewLinearModel precomputes (A, b, c) from prior, data and the forward
// operator g (data = g·model + noise).
func NewLinearModel(prior *Prior, data *Data, g *mat.Dense) (*LinearModel, error) {
	rows, cols := g.Dims()
	if cols != prior.Dim() {
		return nil, fmt.Errorf("forward matrix has %d columns for %d parameters: %w",
			cols, prior.Dim(), ErrDimension)
	}
	if rows != data.Observed.Len() {
		return nil, fmt.Errorf("forward matrix has %d rows for %d observations: %w",
			rows, data.Observed.Len(), ErrDimension)
	}
	n := prior.Dim()

	// A = Σ_m⁻¹ + Gᵀ Σ_d⁻¹ G
	var cdG, gtCdG mat.Dense
	cdG.Mul(data.InvCov, g)
	gtCdG.Mul(g.T(), &cdG)
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, prior.InvCov.At(i, j)+gtCdG.At(i, j))
		}
	}

	// b = Σ_m⁻¹ μ + Gᵀ Σ_d⁻¹ d
	b := mat.NewVecDense(n, nil)
	b.MulVec(prior.InvCov, prior.Mean)
	var cdd, gtCdd mat.VecDense
	cdd.MulVec(data.InvCov, data.Observed)
	gtCdd.MulVec(g.T(), &cdd)
	b.AddVec(b, &gtCdd)

	// c = ½ (μᵀ Σ_m⁻¹ μ + dᵀ Σ_d⁻¹ d)
	var cmMu mat.VecDense
	cmMu.MulVec(prior.InvCov, prior.Mean)
	c := 0.5 * (mat.Dot(prior.Mean, &cmMu) + mat.Dot(data.Observed, &cdd))

	return &LinearModel{
		prior: prior,
		n:     n,
		a:     a,
		b:     b,
		c:     c,
		av:    mat.NewVecDense(n, nil),
	}, nil
}

// NewQuadraticModel builds the model directly from a precomputed
// quadratic form (A, b, c). The prior is still required for the initial
// state and Metropolis-Hastings proposals.
func NewQuadraticModel(a *mat.SymDense, b *mat.VecDense, c float64, prior *Prior) (*LinearModel, error) {
	n := a.SymmetricDim()
	if b.Len() != n {
		return nil, fmt.Errorf("linear term has %d entries for a %dx%d quadratic form: %w",
			b.Len(), n, n, ErrDimension)
	}
	if prior.Dim() != n {
		return nil, fmt.Errorf("prior has %d parameters for a %dx%d quadratic form: %w",
			prior.Dim(), n, n, ErrDimension)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("quadratic form: %w", ErrNotSPD)
	}
	return &LinearModel{
		prior: prior,
		n:     n,
		a:     a,
		b:     b,
		c:     c,
		av:    mat.NewVecDense(n, nil),
	}, nil
}

// Dim returns the number of model parameters.
func (lm *LinearModel) Dim() int { return lm.n }

// Prior returns the prior the model was built with.
func (lm *LinearModel) Prior() *Prior { return lm.prior }

// Misfit evaluates χ(m).
func (lm *LinearModel) Misfit(m mat.Vector) (float64, error) {
	if m.Len() != lm.n {
		return 0, fmt.Errorf("model vector has %d entries for %d parameters: %w",
			m.Len(), lm.n, ErrDimension)
	}
	return lm.misfit(m), nil
}

// Grad evaluates ∇χ(m) = Am − b.
func (lm *LinearModel) Grad(m mat.Vector) (*mat.VecDense, error) {
	if m.Len() != lm.n {
		return nil, fmt.Errorf("model vector has %d entries for %d parameters: %w",
			m.Len(), lm.n, ErrDimension)
	}
	dst := mat.NewVecDense(lm.n, nil)
	lm.gradTo(dst, m)
	return dst, nil
}

func (lm *LinearModel) misfit(m mat.Vector) float64 {
	lm.av.MulVec(lm.a, m)
	return 0.5*mat.Dot(m, lm.av) - mat.Dot(lm.b, m) + lm.c
}

// gradTo writes Am − b into dst. A is symmetric, so left and right
// multiplication coincide.
func (lm *LinearModel) gradTo(dst *mat.VecDense, m mat.Vector) {
	dst.MulVec(lm.a, m)
	dst.SubVec(dst, lm.b)
}
