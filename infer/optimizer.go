package infer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize"
)

// FitOptions bounds a single maximization. Both ceilings exist so a batch
// calibration job cannot stall indefinitely on one pathological guess.
type FitOptions struct {
	MaxIterations  int // optimizer major-iteration ceiling
	MaxEvaluations int // likelihood-evaluation ceiling
}

// DefaultFitOptions returns the budget used unless SetFitOptions overrides it.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxIterations:  2000,
		MaxEvaluations: 50000,
	}
}

// FitResult is a cached maximum-likelihood estimate: the parameter vector
// and log-likelihood at an unconditional maximum. Generation records the
// dataset generation the fit was computed on; the cache is valid only while
// it matches the model's DataGeneration.
type FitResult struct {
	Params          Params
	LogLikelihood   float64
	FuncEvaluations int
	Generation      uint64
}

// FitGlobal numerically maximizes the joint log-likelihood over the full
// parameter vector, starting from guess, and caches the result on the model.
// The guess must cover ParamNeeded. Expensive (thousands of likelihood
// evaluations), hence cached rather than recomputed; it must be explicitly
// re-invoked after any dataset change.
//
// The optimizer is local: on a flat or multimodal surface it can settle on
// a non-global optimum, so result quality depends on guess quality. A
// warning is logged when the curvature at the optimum is uninformative.
//
// On budget exhaustion the returned error is a *ConvergenceError carrying
// the best point found; nothing is cached and the caller may retry with a
// different guess.
func (m *Model) FitGlobal(guess Params) (*FitResult, error) {
	best, ll, evals, err := maximizeLogLikelihood(m.Evaluate, nil, guess, m.fitOpts)
	if err != nil {
		return nil, err
	}

	fit := &FitResult{
		Params:          best,
		LogLikelihood:   ll,
		FuncEvaluations: evals,
		Generation:      m.dataGen,
	}
	m.fit = fit
	warnIfFlat(m.Evaluate, best, guess.Names())
	return fit, nil
}

// MaxFit returns the cached global fit and whether it is still valid for
// the current dataset. The cache is a first-class, inspectable field: a
// stale fit is returned with valid=false rather than hidden.
func (m *Model) MaxFit() (*FitResult, bool) {
	if m.fit == nil {
		return nil, false
	}
	return m.fit, m.fit.Generation == m.dataGen
}

// Profile maximizes the joint log-likelihood over the guessed (nuisance)
// parameters only, holding fixed at its given values. It returns the
// profiled maximum and the profiled nuisance estimate. An empty guess means
// nothing to profile: the likelihood is evaluated directly at fixed. A name
// appearing in both fixed and guess is rejected; profiling it would quietly
// un-fix the hypothesis point.
func (m *Model) Profile(fixed, guess Params) (float64, Params, error) {
	if err := checkProfileSets(fixed, guess); err != nil {
		return 0, nil, err
	}
	if len(guess) == 0 {
		ll, err := m.Evaluate(fixed)
		return ll, Params{}, err
	}

	best, ll, _, err := maximizeLogLikelihood(m.Evaluate, fixed, guess, m.fitOpts)
	if err != nil {
		return 0, nil, err
	}
	profiled := make(Params, len(guess))
	for name := range guess {
		profiled[name] = best[name]
	}
	return ll, profiled, nil
}

// checkProfileSets rejects a parameter named in both the fixed and the
// profiled set.
func checkProfileSets(fixed, guess Params) error {
	for name := range guess {
		if _, ok := fixed[name]; ok {
			return fmt.Errorf("parameter %q is both fixed and profiled; a hypothesis parameter cannot be maximized over", name)
		}
	}
	return nil
}

// maximizeLogLikelihood maximizes eval over the parameters named in guess,
// overlaying them on fixed. Returns the full best vector, its
// log-likelihood, and the evaluation count.
func maximizeLogLikelihood(eval func(Params) (float64, error), fixed, guess Params, opts FitOptions) (Params, float64, int, error) {
	if len(guess) == 0 {
		// Nothing free to optimize over.
		ll, err := eval(fixed)
		if err != nil {
			return nil, 0, 0, err
		}
		return fixed.Clone(), ll, 1, nil
	}

	names := guess.Names()
	x0 := make([]float64, len(names))
	for i, name := range names {
		x0[i] = guess[name]
	}

	// The initial point must evaluate cleanly; this also surfaces
	// MissingParameterError before the optimizer runs.
	scratch := fixed.Merge(guess)
	if _, err := eval(scratch); err != nil {
		return nil, 0, 0, fmt.Errorf("initial guess: %w", err)
	}

	objective := func(x []float64) float64 {
		for i, name := range names {
			scratch[name] = x[i]
		}
		ll, err := eval(scratch)
		if err != nil {
			// Out-of-domain points repel the simplex instead of aborting
			// the whole fit.
			return math.Inf(1)
		}
		return -ll
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: opts.MaxEvaluations,
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, 0, 0, fmt.Errorf("optimizer: %w", err)
	}

	best := fixed.Merge(guess)
	for i, name := range names {
		best[name] = result.X[i]
	}
	ll := -result.F
	evals := result.Stats.FuncEvaluations

	if err != nil || !converged(result.Status) {
		return nil, 0, 0, &ConvergenceError{
			Status:          result.Status.String(),
			Best:            best,
			BestLogL:        ll,
			FuncEvaluations: evals,
		}
	}
	return best, ll, evals, nil
}

// converged reports whether an optimizer termination status counts as a
// successful local convergence.
func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionConvergence,
		optimize.FunctionThreshold,
		optimize.GradientThreshold,
		optimize.StepConvergence:
		return true
	default:
		return false
	}
}

// flatCurvatureTol is the minimum |d²logL/dx²| below which a direction is
// reported as flat.
const flatCurvatureTol = 1e-9

// warnIfFlat probes the local curvature at a fitted optimum by central
// finite differences and logs a warning for any uninformative direction.
// The fit is still returned.
func warnIfFlat(eval func(Params) (float64, error), best Params, names []string) {
	f0, err := eval(best)
	if err != nil {
		return
	}
	for _, name := range names {
		h := 1e-4 * math.Max(1, math.Abs(best[name]))
		probe := best.Clone()

		probe[name] = best[name] + h
		fp, err := eval(probe)
		if err != nil {
			continue
		}
		probe[name] = best[name] - h
		fm, err := eval(probe)
		if err != nil {
			continue
		}

		curv := (fp + fm - 2*f0) / (h * h)
		if math.Abs(curv) < flatCurvatureTol {
			logrus.Warnf("flat likelihood: no curvature along %q at the fitted optimum (d2=%.3g); the fit is not informative about this parameter", name, curv)
		}
	}
}
