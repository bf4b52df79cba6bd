// Package config turns the command line into sampler settings and file
// paths. Every flag except -seed is registered under both its short and
// long spelling; parsing the same argv twice yields identical results.
package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/larsgeb/hmc-inversion/hmc"
)

// Config is the parsed command line.
type Config struct {
	Settings hmc.Settings

	// Forward-problem inputs.
	MatrixFile string
	DataFile   string
	DataStd    float64

	// Precomputed quadratic-form inputs (ABC mode).
	AFile string
	BFile string
	CFile string

	// Prior, broadcast to every parameter.
	Mean float64
	Std  float64

	// Outputs.
	SamplesFile    string
	TrajectoryFile string

	Verbose bool
}

// ABCMode reports whether the quadratic form is read directly from
// files instead of being assembled from the forward problem.
func (c *Config) ABCMode() bool {
	return c.AFile != "" || c.BFile != "" || c.CFile != ""
}

// Parse reads args (without the program name). A -h/--help request
// prints usage to out and returns flag.ErrHelp.
func Parse(args []string, out io.Writer) (*Config, error) {
	c := &Config{
		Settings:       hmc.DefaultSettings(),
		DataStd:        1.0,
		Mean:           0.0,
		Std:            1.0,
		SamplesFile:    "OUTPUT/samples.txt",
		TrajectoryFile: "OUTPUT/trajectory.txt",
	}
	// The original tool derives the step size from the stability bound
	// unless one is given explicitly.
	c.Settings.StepSize = 0

	fs := flag.NewFlagSet("hmcinvert", flag.ContinueOnError)
	fs.SetOutput(out)
	mtype := int(c.Settings.MassKind)
	c.register(fs, &mtype)
	fs.Usage = func() {
		fmt.Fprintln(out, "Sample the posterior of a linear inverse problem by Hamiltonian Monte Carlo.")
		fmt.Fprintln(out, "\nUsage: hmcinvert [flags]")
		fmt.Fprintln(out, "\nEvery flag accepts a single or a double dash. Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	kind, err := hmc.ParseMassKind(mtype)
	if err != nil {
		return nil, err
	}
	c.Settings.MassKind = kind

	if c.ABCMode() && (c.AFile == "" || c.BFile == "" || c.CFile == "") {
		return nil, fmt.Errorf("ABC mode needs all of -ia, -ib and -ic")
	}
	if !c.ABCMode() && (c.MatrixFile == "" || c.DataFile == "") {
		return nil, fmt.Errorf("need -im and -id, or -ia/-ib/-ic")
	}
	if c.Std <= 0 {
		return nil, fmt.Errorf("prior standard deviation %g must be positive", c.Std)
	}
	if c.DataStd <= 0 {
		return nil, fmt.Errorf("data standard deviation %g must be positive", c.DataStd)
	}
	return c, nil
}

func (c *Config) register(fs *flag.FlagSet, mtype *int) {
	set := &c.Settings

	stringVar := func(p *string, short, long, usage string) {
		fs.StringVar(p, short, *p, usage)
		fs.StringVar(p, long, *p, usage)
	}
	floatVar := func(p *float64, short, long, usage string) {
		fs.Float64Var(p, short, *p, usage)
		fs.Float64Var(p, long, *p, usage)
	}
	intVar := func(p *int, short, long, usage string) {
		fs.IntVar(p, short, *p, usage)
		fs.IntVar(p, long, *p, usage)
	}
	boolVar := func(p *bool, short, long, usage string) {
		fs.BoolVar(p, short, *p, usage)
		fs.BoolVar(p, long, *p, usage)
	}

	stringVar(&c.MatrixFile, "im", "inputmatrix", "forward matrix file (header \"M N\", then rows)")
	stringVar(&c.DataFile, "id", "inputdata", "observed data file, one value per line")
	stringVar(&c.AFile, "ia", "inputA", "precomputed quadratic-form matrix A")
	stringVar(&c.BFile, "ib", "inputB", "precomputed linear term b, one value per line")
	stringVar(&c.CFile, "ic", "inputC", "precomputed constant c, single value")
	stringVar(&c.SamplesFile, "os", "outputsamples", "output samples file")
	stringVar(&c.TrajectoryFile, "ot", "outputtrajectory", "output trajectory file")

	floatVar(&c.Mean, "means", "priormeans", "prior mean, broadcast to all parameters")
	floatVar(&c.Std, "std", "priorstd", "prior standard deviation, broadcast to all parameters")
	floatVar(&c.DataStd, "dstd", "datastd", "data standard deviation, broadcast to all observations")

	floatVar(&set.StepSize, "dt", "timestep", "leap-frog step size (0 = derive from stability bound)")
	intVar(&set.TrajectorySteps, "nt", "trajectorysteps", "leap-frog steps per trajectory")
	floatVar(&set.Temperature, "t", "temperature", "acceptance temperature")
	intVar(&set.Proposals, "ns", "numberofsamples", "number of proposals")
	floatVar(&set.Gravity, "g", "gravity", "mass matrix scaling")

	intVar(mtype, "mtype", "massmatrixtype", "mass matrix type: full ideal (0), diagonal ideal (1) or unit (2)")

	boolVar(&set.AdaptStepSize, "at", "adapttimestep", "clamp the step size to half the stability bound of M⁻¹A")
	boolVar(&set.Ergodic, "e", "ergodic", "randomize trajectory length and step size per proposal")
	boolVar(&set.GenMomPropose, "gmp", "correlatedmomenta", "propose momenta through the full mass matrix Cholesky factor")
	boolVar(&set.GenMomKinetic, "gmc", "generalkinetic", "use the full inverse mass matrix in the kinetic energy")
	boolVar(&set.NormalizeMomentum, "nm", "normalizemomentum", "rescale fresh momenta to the current momentum norm")
	boolVar(&set.TestBefore, "Hb", "hamiltonianbefore", "apply the accept test before integrating")
	boolVar(&set.HMC, "an", "algorithmnew", "Hamiltonian proposals (true) or Metropolis-Hastings (false)")
	fs.Int64Var(&set.Seed, "seed", set.Seed, "random seed (0 = wall clock)")

	boolVar(&c.Verbose, "v", "verbose", "debug logging")
}
