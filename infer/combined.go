package infer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CombinedModel joins several models into one joint likelihood, e.g. a
// science run combined with sidebands or earlier exposures. Parameters with
// the same name are shared across the sub-models; the combined ParamNeeded
// is the union and the combined range of a shared parameter is the
// intersection of the sub-model ranges.
//
// Each sub-model keeps its own dataset and the sub-models' own range
// penalties apply; the combined model adds no penalty of its own on top.
type CombinedModel struct {
	models []*Model

	paramNeeded []string
	ranges      map[string]Range

	fitOpts FitOptions
	fit     *FitResult
}

// Combine builds a CombinedModel from one or more sub-models.
func Combine(models ...*Model) (*CombinedModel, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("combine: at least one model required")
	}

	needed := make(map[string]bool)
	ranges := make(map[string]Range)
	for _, m := range models {
		for _, name := range m.ParamNeeded() {
			needed[name] = true
		}
		for name, r := range m.ParamRanges() {
			if prev, ok := ranges[name]; ok {
				ranges[name] = Range{
					Lo: math.Max(prev.Lo, r.Lo),
					Hi: math.Min(prev.Hi, r.Hi),
				}
			} else {
				ranges[name] = r
			}
		}
	}

	names := make([]string, 0, len(needed))
	for name := range needed {
		names = append(names, name)
	}
	sort.Strings(names)

	return &CombinedModel{
		models:      models,
		paramNeeded: names,
		ranges:      ranges,
		fitOpts:     DefaultFitOptions(),
	}, nil
}

// ParamNeeded returns the sorted union of the sub-models' needed parameters.
func (c *CombinedModel) ParamNeeded() []string {
	out := make([]string, len(c.paramNeeded))
	copy(out, c.paramNeeded)
	return out
}

// ParamRanges returns the intersected parameter ranges.
func (c *CombinedModel) ParamRanges() map[string]Range {
	out := make(map[string]Range, len(c.ranges))
	for k, v := range c.ranges {
		out[k] = v
	}
	return out
}

// SetFitOptions replaces the optimizer budget for combined fits.
func (c *CombinedModel) SetFitOptions(opts FitOptions) { c.fitOpts = opts }

// Evaluate returns the summed log-likelihood of all sub-models at p.
func (c *CombinedModel) Evaluate(p Params) (float64, error) {
	for _, name := range c.paramNeeded {
		if _, ok := p[name]; !ok {
			return 0, &MissingParameterError{Name: name}
		}
	}
	total := 0.0
	for i, m := range c.models {
		ll, err := m.Evaluate(p)
		if err != nil {
			return 0, fmt.Errorf("sub-model %d: %w", i, err)
		}
		total += ll
	}
	return total, nil
}

// SetDataFromToyMC simulates and installs a toy dataset in every sub-model
// at the shared true parameters, marking the combined fit cache stale.
func (c *CombinedModel) SetDataFromToyMC(trueParams Params, rng *rand.Rand) error {
	for i, m := range c.models {
		if err := m.SetDataFromToyMC(trueParams, rng); err != nil {
			return fmt.Errorf("sub-model %d: %w", i, err)
		}
	}
	return nil
}

// generation is the combined dataset generation: any sub-model data change
// changes it.
func (c *CombinedModel) generation() uint64 {
	var g uint64
	for _, m := range c.models {
		g += m.DataGeneration()
	}
	return g
}

// FitGlobal maximizes the combined likelihood over the full parameter
// vector and caches the result. Same contract as Model.FitGlobal.
func (c *CombinedModel) FitGlobal(guess Params) (*FitResult, error) {
	best, ll, evals, err := maximizeLogLikelihood(c.Evaluate, nil, guess, c.fitOpts)
	if err != nil {
		return nil, err
	}
	fit := &FitResult{
		Params:          best,
		LogLikelihood:   ll,
		FuncEvaluations: evals,
		Generation:      c.generation(),
	}
	c.fit = fit
	warnIfFlat(c.Evaluate, best, guess.Names())
	return fit, nil
}

// MaxFit returns the cached combined fit and whether it is still valid.
func (c *CombinedModel) MaxFit() (*FitResult, bool) {
	if c.fit == nil {
		return nil, false
	}
	return c.fit, c.fit.Generation == c.generation()
}

// Profile maximizes the combined likelihood over guess, holding fixed.
// Same overlap contract as Model.Profile.
func (c *CombinedModel) Profile(fixed, guess Params) (float64, Params, error) {
	if err := checkProfileSets(fixed, guess); err != nil {
		return 0, nil, err
	}
	if len(guess) == 0 {
		ll, err := c.Evaluate(fixed)
		return ll, Params{}, err
	}
	best, ll, _, err := maximizeLogLikelihood(c.Evaluate, fixed, guess, c.fitOpts)
	if err != nil {
		return 0, nil, err
	}
	profiled := make(Params, len(guess))
	for name := range guess {
		profiled[name] = best[name]
	}
	return ll, profiled, nil
}

// Statistic computes the combined profile-likelihood-ratio statistic.
// Same contract as Model.Statistic.
func (c *CombinedModel) Statistic(fixed, guess Params) (float64, error) {
	fit, valid := c.MaxFit()
	if !valid {
		e := &StaleFitError{DataGeneration: c.generation()}
		if fit != nil {
			e.FitGeneration = fit.Generation
		}
		return 0, e
	}

	profLL, _, err := c.Profile(fixed, guess)
	if err != nil {
		return 0, err
	}
	t := 2 * (fit.LogLikelihood - profLL)
	if t < 0 {
		logrus.Warnf("negative combined test statistic t=%v at hypothesis %v: likely optimizer non-convergence", t, fixed)
	}
	return t, nil
}

// View concatenates the sub-models' term descriptions.
func (c *CombinedModel) View() string {
	var b strings.Builder
	for i, m := range c.models {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- sub-model %d ---\n%s", i, m.View())
	}
	return b.String()
}
