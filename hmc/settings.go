package hmc

import "fmt"

// Settings collects every tuning knob of the sampler. The zero value is
// not useful; start from DefaultSettings.
type Settings struct {
	// StepSize is the leap-frog time step Δt. Zero or negative means
	// "derive from the stability bound" (see AdaptStepSize).
	StepSize float64
	// TrajectorySteps is the number of leap-frog steps n_t per proposal.
	TrajectorySteps int
	// Temperature divides the energy difference in the accept rule.
	Temperature float64
	// Proposals is the chain length P.
	Proposals int
	// Gravity scales the ideal mass matrix.
	Gravity float64
	// MassKind selects full, diagonal or identity mass.
	MassKind MassKind

	// GenMomPropose draws momenta through the full Cholesky factor of M
	// instead of component-wise from the diagonal.
	GenMomPropose bool
	// GenMomKinetic uses the full M⁻¹ in the kinetic energy and drift
	// instead of the inverted diagonal.
	GenMomKinetic bool
	// NormalizeMomentum rescales each fresh momentum to the Euclidean
	// norm of the current one.
	NormalizeMomentum bool
	// TestBefore applies the accept test to H(m_cur, p_prop) before
	// integrating, skipping the trajectory for rejected proposals.
	TestBefore bool
	// Ergodic multiplies n_t and Δt by U(0.5, 1.5) per proposal.
	Ergodic bool
	// AdaptStepSize clamps Δt to half the stability bound of M⁻¹A, and
	// uses that value when StepSize is not positive.
	AdaptStepSize bool
	// HMC selects Hamiltonian proposals; false falls back to
	// Metropolis-Hastings with prior draws.
	HMC bool

	// Seed for the random source; zero seeds from wall-clock time.
	Seed int64
}

// DefaultSettings mirrors the historical defaults: dt 0.1, nt 10, T 1,
// 1000 proposals, full ideal mass matrix, every variance-reduction knob
// enabled.
func DefaultSettings() Settings {
	return Settings{
		StepSize:          0.1,
		TrajectorySteps:   10,
		Temperature:       1.0,
		Proposals:         1000,
		Gravity:           1.0,
		MassKind:          MassFull,
		GenMomPropose:     true,
		GenMomKinetic:     true,
		NormalizeMomentum: false,
		TestBefore:        true,
		Ergodic:           true,
		AdaptStepSize:     true,
		HMC:               true,
	}
}

// Validate reports the first out-of-range setting.
func (s Settings) Validate() error {
	if s.TrajectorySteps < 1 {
		return fmt.Errorf("trajectory steps %d, need at least 1", s.TrajectorySteps)
	}
	if s.StepSize <= 0 && !s.AdaptStepSize {
		return fmt.Errorf("step size %g must be positive when adaptation is off", s.StepSize)
	}
	if !(s.Temperature > 0) {
		return fmt.Errorf("temperature %g must be positive", s.Temperature)
	}
	if s.Proposals < 1 {
		return fmt.Errorf("proposal count %d, need at least 1", s.Proposals)
	}
	if s.Gravity <= 0 {
		return fmt.Errorf("gravity %g must be positive", s.Gravity)
	}
	return nil
}
