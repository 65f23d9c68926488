// Package calib builds the empirical null distribution of the
// profile-likelihood-ratio statistic by repeated toy simulation (Neyman
// construction). Each toy is an independent simulate-fit-statistic cycle;
// toys run on a pool of workers, each holding its own Model instance (own
// dataset, own fit cache). Templates behind the models are read-only and
// shared.
package calib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xzh19980906/inference/infer"
)

// Config describes one calibration batch: all toys are generated at
// TrueParams and the statistic is evaluated at the single hypothesis point
// (Fixed, ProfileGuess).
type Config struct {
	Toys    int   // number of toy datasets (must be > 0)
	Workers int   // worker goroutines (<= 0 means 1)
	Seed    int64 // master seed; toy i uses a stream derived from (Seed, i)

	TrueParams   infer.Params // generative truth for the toys
	Fixed        infer.Params // hypothesis point: fixed interesting parameters
	ProfileGuess infer.Params // initial guess for the profiled nuisances
	GlobalGuess  infer.Params // initial guess for the unconditional fit
}

// Validate checks the batch configuration.
func (c *Config) Validate() error {
	if c.Toys <= 0 {
		return fmt.Errorf("calibration requires at least one toy, got %d", c.Toys)
	}
	if len(c.GlobalGuess) == 0 {
		return fmt.Errorf("empty global fit guess")
	}
	return nil
}

// Result is the empirical distribution of the statistic over one batch.
type Result struct {
	// Stats holds the statistic of every toy whose fits converged, sorted
	// ascending.
	Stats []float64
	// Failures counts toys dropped for optimizer non-convergence. They are
	// reported, never silently folded into Stats.
	Failures int
	// Toys is the configured batch size (len(Stats) + Failures).
	Toys int
}

// Run executes a calibration batch. build must return a fresh Model per
// call; every worker gets its own. Toy i is deterministic in (cfg.Seed, i)
// regardless of worker count or scheduling.
//
// Per-toy convergence failures are logged and counted, and the batch
// continues; any other error (bad spec, missing parameter, simulation
// failure) aborts the run.
func Run(ctx context.Context, cfg Config, build func() (*infer.Model, error)) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration config: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > cfg.Toys {
		workers = cfg.Toys
	}

	stats := make([]float64, cfg.Toys)
	for i := range stats {
		stats[i] = math.NaN() // NaN marks a failed toy
	}
	var failures atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	indices := make(chan int)
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < cfg.Toys; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			model, err := build()
			if err != nil {
				return fmt.Errorf("building worker model: %w", err)
			}
			// Each worker partitions the batch seed itself; toy i always gets
			// the same stream no matter which worker draws it.
			prng := infer.NewPartitionedRNG(infer.NewSimulationKey(cfg.Seed))
			for i := range indices {
				t, err := runToy(model, cfg, prng.ForSubsystem(infer.SubsystemToy(i)))
				if err != nil {
					var conv *infer.ConvergenceError
					if errors.As(err, &conv) {
						logrus.Warnf("toy %d dropped: %v", i, err)
						failures.Add(1)
						continue
					}
					return fmt.Errorf("toy %d: %w", i, err)
				}
				stats[i] = t
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]float64, 0, cfg.Toys)
	for _, t := range stats {
		if !math.IsNaN(t) {
			kept = append(kept, t)
		}
	}
	sort.Float64s(kept)

	res := &Result{
		Stats:    kept,
		Failures: int(failures.Load()),
		Toys:     cfg.Toys,
	}
	logrus.Infof("calibration batch done: %d toys, %d kept, %d convergence failures",
		res.Toys, len(res.Stats), res.Failures)
	return res, nil
}

// runToy runs one simulate-fit-statistic cycle on the worker's model using
// the toy's own RNG stream.
func runToy(model *infer.Model, cfg Config, rng *rand.Rand) (float64, error) {
	if err := model.SetDataFromToyMC(cfg.TrueParams, rng); err != nil {
		return 0, err
	}
	if _, err := model.FitGlobal(cfg.GlobalGuess); err != nil {
		return 0, err
	}
	return model.Statistic(cfg.Fixed, cfg.ProfileGuess)
}

// PValue is the empirical Monte-Carlo p-value of an observed statistic: the
// fraction of toys at least as extreme, with the usual (k+1)/(n+1)
// correction so a finite batch never reports exactly zero.
func (r *Result) PValue(observed float64) float64 {
	if len(r.Stats) == 0 {
		return 1
	}
	// Stats is sorted ascending; count entries >= observed.
	idx := sort.SearchFloat64s(r.Stats, observed)
	k := len(r.Stats) - idx
	return float64(k+1) / float64(len(r.Stats)+1)
}

// Quantile returns the empirical q-quantile (0 <= q <= 1) of the statistic.
func (r *Result) Quantile(q float64) float64 {
	if len(r.Stats) == 0 {
		return math.NaN()
	}
	idx := int(q * float64(len(r.Stats)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.Stats) {
		idx = len(r.Stats) - 1
	}
	return r.Stats[idx]
}
