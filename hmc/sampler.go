package hmc

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// energyDriftWarn is the |ΔH| over one trajectory beyond which an
// instability warning is logged (once per run). Only trajectories
// integrated before the accept test (TestBefore off) are checked.
const energyDriftWarn = 10.0

// Option configures a Sampler at construction.
type Option func(*Sampler)

// WithRandomSource injects a random source, typically a seeded one in
// tests. It overrides Settings.Seed.
func WithRandomSource(rs *RandomSource) Option {
	return func(s *Sampler) { s.rs = rs }
}

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) { s.log = l.Sugar() }
}

// Stats summarizes a finished run.
type Stats struct {
	Proposals int
	Accepted  int
	UTurns    int
	Emitted   int
	StepSize  float64
	Elapsed   time.Duration
}

// Sampler draws from the posterior of a linear-Gaussian inverse problem
// by Hamiltonian Monte Carlo, with Metropolis-Hastings as a fallback
// algorithm. It owns the chain state exclusively and holds immutable
// references to the model and mass matrix; each iteration depends on
// the previously accepted state, so a run is strictly sequential.
type Sampler struct {
	model *LinearModel
	mass  *MassMatrix
	lf    *Leapfrog
	set   Settings
	rs    *RandomSource
	log   *zap.SugaredLogger

	cur     *mat.VecDense
	prop    *mat.VecDense
	curMom  *mat.VecDense
	propMom *mat.VecDense

	accepted int
	uturns   int
	drifts   int

	stepSize float64
	stable   float64
}

// NewSampler builds the mass matrix, resolves the step size against the
// stability bound and draws the initial state from the prior.
func NewSampler(model *LinearModel, set Settings, opts ...Option) (*Sampler, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	n := model.Dim()

	mass, err := NewMassMatrix(set.MassKind, set.Gravity, model.a)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		model:   model,
		mass:    mass,
		lf:      NewLeapfrog(model, mass, set.GenMomKinetic),
		set:     set,
		cur:     mat.NewVecDense(n, nil),
		prop:    mat.NewVecDense(n, nil),
		curMom:  mat.NewVecDense(n, nil),
		propMom: mat.NewVecDense(n, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rs == nil {
		s.rs = NewRandomSource(set.Seed)
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}

	s.stable, err = mass.StableStepSize(model.a)
	if err != nil {
		return nil, err
	}
	s.stepSize = set.StepSize
	if set.AdaptStepSize {
		if adapted := 0.5 * s.stable; s.stepSize <= 0 || s.stepSize > adapted {
			s.stepSize = adapted
		}
	} else if s.stepSize > s.stable {
		s.log.Warnf("step size %g exceeds stability bound %g; trajectories may diverge",
			s.stepSize, s.stable)
	}

	// Initial state: model from the prior, momentum from the mass matrix.
	s.rs.NormalVec(s.prop, model.prior.Mean, model.prior.stds)
	s.cur.CopyVec(s.prop)
	mass.SampleMomentum(s.propMom, s.rs, set.GenMomPropose)
	if set.NormalizeMomentum {
		norm := floats.Norm(s.propMom.RawVector().Data, 2)
		if norm > 0 {
			s.propMom.ScaleVec(1/norm, s.propMom)
		}
	}
	s.curMom.CopyVec(s.propMom)

	return s, nil
}

// SetStarting overrides the prior-drawn initial model.
func (s *Sampler) SetStarting(m *mat.VecDense) error {
	if m.Len() != s.model.Dim() {
		return fmt.Errorf("starting model has %d components for %d parameters: %w",
			m.Len(), s.model.Dim(), ErrDimension)
	}
	s.cur.CopyVec(m)
	s.prop.CopyVec(m)
	return nil
}

// StepSize returns the resolved leap-frog step size.
func (s *Sampler) StepSize() float64 { return s.stepSize }

// Run drives the chain for Settings.Proposals iterations, emitting the
// initial state and every accepted proposal to samples. The trajectory
// of the final proposal's integration is emitted to traj when non-nil.
// Run writes the accepted-count footer and flushes both sinks; closing
// the underlying files stays with the caller. Either sink may be nil.
func (s *Sampler) Run(samples, traj *SampleSink) (Stats, error) {
	start := time.Now()
	set := &s.set

	s.log.Infow("sampling posterior",
		"algorithm", algorithmName(set.HMC),
		"parameters", s.model.Dim(),
		"proposals", set.Proposals,
		"massMatrix", s.mass.Kind().String(),
		"stepSize", s.stepSize,
		"trajectorySteps", set.TrajectorySteps,
		"temperature", set.Temperature,
		"testBefore", set.TestBefore,
		"ergodic", set.Ergodic,
	)

	// Energy of the initial state; the momentum term only exists for
	// the Hamiltonian algorithm.
	x := s.model.misfit(s.cur)
	if set.HMC {
		x += s.mass.Kinetic(s.curMom, set.GenMomKinetic)
	}
	if err := s.emit(samples, s.cur, x); err != nil {
		return Stats{}, err
	}
	s.accepted = 1

	progressEvery := set.Proposals / 10
	if progressEvery < 1 {
		progressEvery = 1
	}

	for it := 1; it < set.Proposals; it++ {
		nt, dt := set.TrajectorySteps, s.stepSize
		if set.Ergodic {
			nt = int(float64(nt)*s.rs.UniformRange(0.5, 1.5) + 0.5)
			if nt < 1 {
				nt = 1
			}
			dt *= s.rs.UniformRange(0.5, 1.5)
		}

		var rec StepRecorder
		var trajErr error
		if traj != nil && it == set.Proposals-1 {
			rec = func(step int, m *mat.VecDense) {
				if err := traj.Write(m, s.model.misfit(m)); err != nil && trajErr == nil {
					trajErr = err
				}
			}
		}

		var xNew float64
		switch {
		case set.HMC:
			s.proposeMomentum()
			if set.TestBefore {
				// H is conserved along the exact trajectory, so the
				// end-of-trajectory energy can be read off before
				// integrating, up to discretization error.
				xNew = s.model.misfit(s.cur) + s.mass.Kinetic(s.propMom, set.GenMomKinetic)
			} else {
				hStart := s.model.misfit(s.cur) + s.mass.Kinetic(s.propMom, set.GenMomKinetic)
				s.propagate(nt, dt, rec)
				xNew = s.model.misfit(s.prop) + s.mass.Kinetic(s.propMom, set.GenMomKinetic)
				s.checkDrift(xNew - hStart)
			}
		default:
			s.rs.NormalVec(s.prop, s.model.prior.Mean, s.model.prior.stds)
			xNew = s.model.misfit(s.prop)
		}

		if s.accept(x, xNew) {
			if set.HMC && set.TestBefore {
				s.propagate(nt, dt, rec)
			}
			s.cur.CopyVec(s.prop)
			x = xNew
			s.accepted++
			if err := s.emit(samples, s.cur, x); err != nil {
				return Stats{}, err
			}
		}
		if trajErr != nil {
			return Stats{}, trajErr
		}

		if it%progressEvery == 0 {
			s.log.Debugf("%d/%d proposals, %.1f%% accepted, %d u-turns",
				it, set.Proposals, 100*float64(s.accepted)/float64(it+1), s.uturns)
		}
	}

	if samples != nil {
		if err := samples.CloseWithFooter(s.accepted); err != nil {
			return Stats{}, err
		}
	}
	if traj != nil {
		if err := traj.Close(); err != nil {
			return Stats{}, err
		}
	}

	stats := Stats{
		Proposals: set.Proposals,
		Accepted:  s.accepted,
		UTurns:    s.uturns,
		StepSize:  s.stepSize,
		Elapsed:   time.Since(start),
	}
	if samples != nil {
		stats.Emitted = samples.Count()
	}
	s.log.Infow("sampling finished",
		"accepted", stats.Accepted,
		"uturns", stats.UTurns,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// proposeMomentum redraws the proposal momentum, optionally rescaling
// it to the current momentum's norm.
func (s *Sampler) proposeMomentum() {
	s.mass.SampleMomentum(s.propMom, s.rs, s.set.GenMomPropose)
	if s.set.NormalizeMomentum {
		cur := floats.Norm(s.curMom.RawVector().Data, 2)
		fresh := floats.Norm(s.propMom.RawVector().Data, 2)
		if fresh > 0 {
			s.propMom.ScaleVec(cur/fresh, s.propMom)
		}
	}
}

// propagate integrates from the current model with the proposal
// momentum, leaving the end state in (prop, propMom). The momentum at
// the start of the trajectory becomes the current momentum.
func (s *Sampler) propagate(nt int, dt float64, rec StepRecorder) {
	s.prop.CopyVec(s.cur)
	s.curMom.CopyVec(s.propMom)
	if _, uturn := s.lf.Integrate(s.prop, s.propMom, nt, dt, rec); uturn {
		s.uturns++
	}
}

// accept applies the Metropolis rule at the configured temperature.
func (s *Sampler) accept(x, xNew float64) bool {
	if xNew < x {
		return true
	}
	return math.Exp(-(xNew-x)/s.set.Temperature) > s.rs.Uniform()
}

func (s *Sampler) checkDrift(dh float64) {
	if math.Abs(dh) < energyDriftWarn {
		return
	}
	s.drifts++
	if s.drifts == 1 {
		s.log.Warnf("energy drift %.3g over one trajectory; step size %g too large for this mass matrix",
			dh, s.stepSize)
	}
}

func (s *Sampler) emit(sink *SampleSink, m *mat.VecDense, energy float64) error {
	if sink == nil {
		return nil
	}
	return sink.Write(m, energy)
}

func algorithmName(hamiltonian bool) string {
	if hamiltonian {
		return "hmc"
	}
	return "metropolis-hastings"
}
