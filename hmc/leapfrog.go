package hmc

import (
	"gonum.org/v1/gonum/mat"
)

// StepRecorder receives the model state once per leap-frog step, after
// the first half-kick. The sampler uses it to write the trajectory file
// for the final proposal.
type StepRecorder func(step int, m *mat.VecDense)

// Leapfrog integrates Hamilton's equations for H(m,p) = χ(m) + K(p)
// with the Störmer–Verlet scheme: half-kick, full drift, half-kick.
// The scheme is symplectic, time-reversible under p → −p and volume
// preserving, which the Metropolis acceptance rule relies on.
type Leapfrog struct {
	model *LinearModel
	mass  *MassMatrix
	// fullDrift selects M⁻¹ over diag(M)⁻¹ in the drift step; bound
	// once at construction so the inner loop carries no dispatch.
	fullDrift bool

	grad   *mat.VecDense
	vel    *mat.VecDense
	mStart *mat.VecDense
	pStart *mat.VecDense
	deltaM *mat.VecDense
}

// NewLeapfrog binds the integrator to a model, a mass matrix and the
// drift variant.
func NewLeapfrog(model *LinearModel, mass *MassMatrix, fullDrift bool) *Leapfrog {
	n := model.Dim()
	return &Leapfrog{
		model:     model,
		mass:      mass,
		fullDrift: fullDrift,
		grad:      mat.NewVecDense(n, nil),
		vel:       mat.NewVecDense(n, nil),
		mStart:    mat.NewVecDense(n, nil),
		pStart:    mat.NewVecDense(n, nil),
		deltaM:    mat.NewVecDense(n, nil),
	}
}

// kick advances the momentum by −h·∇χ(m).
func (lf *Leapfrog) kick(m, p *mat.VecDense, h float64) {
	lf.model.gradTo(lf.grad, m)
	p.AddScaledVec(p, -h, lf.grad)
}

// drift advances the model by dt·M⁻¹p.
func (lf *Leapfrog) drift(m, p *mat.VecDense, dt float64) {
	lf.mass.ApplyInverse(lf.vel, p, lf.fullDrift)
	m.AddScaledVec(m, dt, lf.vel)
}

// Step performs one full leap-frog step in place.
func (lf *Leapfrog) Step(m, p *mat.VecDense, dt float64) {
	lf.kick(m, p, 0.5*dt)
	lf.drift(m, p, dt)
	lf.kick(m, p, 0.5*dt)
}

// Integrate advances (m, p) in place by up to nt steps of size dt.
// After every step the no-U-turn criterion is evaluated against the
// trajectory start: with Δm = m − m_start, the trajectory terminates
// early when p·(−Δm) > 0 and p_start·Δm > 0, i.e. the momentum is
// pulling back past the starting point. It returns the number of steps
// taken and whether the trajectory was cut short.
func (lf *Leapfrog) Integrate(m, p *mat.VecDense, nt int, dt float64, rec StepRecorder) (steps int, uturn bool) {
	lf.mStart.CopyVec(m)
	lf.pStart.CopyVec(p)

	for it := 0; it < nt; it++ {
		lf.kick(m, p, 0.5*dt)
		if rec != nil {
			rec(it, m)
		}
		lf.drift(m, p, dt)
		lf.kick(m, p, 0.5*dt)
		steps++

		lf.deltaM.SubVec(m, lf.mStart)
		angle1 := -mat.Dot(p, lf.deltaM)
		angle2 := mat.Dot(lf.pStart, lf.deltaM)
		if angle1 > 0 && angle2 > 0 {
			return steps, true
		}
	}
	return steps, false
}
