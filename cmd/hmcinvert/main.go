// Command hmcinvert samples the posterior of a linear inverse problem
// under Gaussian prior and noise assumptions, using Hamiltonian Monte
// Carlo or Metropolis-Hastings.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/larsgeb/hmc-inversion/config"
	"github.com/larsgeb/hmc-inversion/hmc"
	"github.com/larsgeb/hmc-inversion/matio"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Verbose)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Sugar().Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	model, err := buildModel(cfg)
	if err != nil {
		return err
	}

	sampler, err := hmc.NewSampler(model, cfg.Settings, hmc.WithLogger(logger))
	if err != nil {
		return err
	}

	samplesFile, err := createOutput(cfg.SamplesFile)
	if err != nil {
		return err
	}
	defer samplesFile.Close()
	samples, err := hmc.NewSampleSink(samplesFile, model.Dim(), cfg.Settings.Proposals)
	if err != nil {
		return err
	}

	trajFile, err := createOutput(cfg.TrajectoryFile)
	if err != nil {
		return err
	}
	defer trajFile.Close()
	traj, err := hmc.NewSampleSink(trajFile, model.Dim(), cfg.Settings.TrajectorySteps)
	if err != nil {
		return err
	}

	stats, err := sampler.Run(samples, traj)
	if err != nil {
		return err
	}
	logger.Sugar().Infof("%d/%d proposals accepted, %d u-turns, step size %g, %s",
		stats.Accepted, stats.Proposals, stats.UTurns, stats.StepSize, stats.Elapsed)
	return nil
}

func buildModel(cfg *config.Config) (*hmc.LinearModel, error) {
	if cfg.ABCMode() {
		a, err := matio.ReadSymMatrix(cfg.AFile)
		if err != nil {
			return nil, err
		}
		b, err := matio.ReadVector(cfg.BFile)
		if err != nil {
			return nil, err
		}
		c, err := matio.ReadScalar(cfg.CFile)
		if err != nil {
			return nil, err
		}
		prior, err := broadcastPrior(cfg, a.SymmetricDim())
		if err != nil {
			return nil, err
		}
		return hmc.NewQuadraticModel(a, b, c, prior)
	}

	g, err := matio.ReadMatrix(cfg.MatrixFile)
	if err != nil {
		return nil, err
	}
	d, err := matio.ReadVector(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	data, err := hmc.NewDataWithStd(d, cfg.DataStd)
	if err != nil {
		return nil, err
	}
	_, n := g.Dims()
	prior, err := broadcastPrior(cfg, n)
	if err != nil {
		return nil, err
	}
	return hmc.NewLinearModel(prior, data, g)
}

func broadcastPrior(cfg *config.Config, n int) (*hmc.Prior, error) {
	means := make([]float64, n)
	stds := make([]float64, n)
	for i := range means {
		means[i] = cfg.Mean
		stds[i] = cfg.Std
	}
	return hmc.NewDiagonalPrior(means, stds)
}

func createOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func newLogger(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}
