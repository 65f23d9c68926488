package infer

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Model composes likelihood terms into one joint log-likelihood function of
// named parameters. It owns the observed dataset and the cached global fit;
// the dataset is deliberately model state rather than an evaluation argument
// because profiling evaluates the likelihood thousands of times per fit.
//
// A Model is not safe for concurrent use. Calibration runs give every worker
// its own Model; the templates behind the sources may be shared.
type Model struct {
	terms   []Term
	sources []Source // generative factorization; empty = model cannot simulate

	needed      map[string]bool
	paramNeeded []string // sorted
	ranges      map[string]Range

	fitOpts FitOptions

	data    *Dataset
	dataGen uint64
	fit     *FitResult
}

// NewModel creates a model from likelihood terms alone. Such a model can be
// evaluated, fit, and profiled, but cannot simulate toy datasets; use
// NewCountingModel (or NewModelWithSources) for a generative model.
func NewModel(terms ...Term) *Model {
	m := &Model{
		terms:   terms,
		needed:  make(map[string]bool),
		ranges:  make(map[string]Range),
		fitOpts: DefaultFitOptions(),
		data:    NewDataset(nil),
		dataGen: 1,
	}
	for _, t := range terms {
		for _, name := range t.ParamNames() {
			m.needed[name] = true
		}
	}
	m.paramNeeded = make([]string, 0, len(m.needed))
	for name := range m.needed {
		m.paramNeeded = append(m.paramNeeded, name)
	}
	sort.Strings(m.paramNeeded)
	return m
}

// NewModelWithSources creates a model whose toy simulator draws from the
// given sources. Every MultiSourceTerm among the terms must be built from
// exactly these sources; a mismatch means simulate and evaluate would follow
// different generative factorizations and is rejected as a defect.
func NewModelWithSources(sources []Source, terms ...Term) (*Model, error) {
	for _, t := range terms {
		mix, ok := t.(*MultiSourceTerm)
		if !ok {
			continue
		}
		if err := sourcesMatch(mix.Tag(), mix.Sources(), sources); err != nil {
			return nil, err
		}
	}
	m := NewModel(terms...)
	m.sources = sources
	return m, nil
}

// NewCountingModel assembles the standard counting-experiment likelihood
// from a source set: a Poisson term over the summed source rates, an
// unbinned mixture term over the source templates, plus any extra terms
// (typically Gaussian constraints). Count term, mixture term, and toy
// simulator all read the same source rates.
func NewCountingModel(sources []Source, extra ...Term) (*Model, error) {
	rates := make([]Rate, len(sources))
	for i, s := range sources {
		rates[i] = s.Rate
	}
	mix, err := NewMultiSourceTerm("unbinned_pdf", sources)
	if err != nil {
		return nil, err
	}

	terms := []Term{NewPoissonTerm("poiss_tot", SumRate(rates...)), mix}
	terms = append(terms, extra...)
	return NewModelWithSources(sources, terms...)
}

// sourcesMatch verifies that a term's source set is the model's source set.
func sourcesMatch(tag string, termSources, modelSources []Source) error {
	if len(termSources) != len(modelSources) {
		return &SimulationInconsistencyError{
			Term:   tag,
			Reason: fmt.Sprintf("term has %d sources, model has %d", len(termSources), len(modelSources)),
		}
	}
	for i := range termSources {
		if termSources[i].Name != modelSources[i].Name || termSources[i].Template != modelSources[i].Template {
			return &SimulationInconsistencyError{
				Term:   tag,
				Reason: fmt.Sprintf("source %d is %q, model expects %q", i, termSources[i].Name, modelSources[i].Name),
			}
		}
	}
	return nil
}

// ParamNeeded returns the sorted set of all parameter names referenced by
// any term, computed once at construction.
func (m *Model) ParamNeeded() []string {
	out := make([]string, len(m.paramNeeded))
	copy(out, m.paramNeeded)
	return out
}

// Terms returns the model's terms in order.
func (m *Model) Terms() []Term { return m.terms }

// SetParamRange sets the allowed interval for one parameter. Outside the
// interval the likelihood is pulled down by an exponential soft wall rather
// than cut off, which keeps the surface smooth for the optimizer.
func (m *Model) SetParamRange(name string, lo, hi float64) {
	m.ranges[name] = Range{Lo: lo, Hi: hi}
}

// SetParamRanges sets several parameter ranges at once.
func (m *Model) SetParamRanges(ranges map[string]Range) {
	for name, r := range ranges {
		m.ranges[name] = r
	}
}

// ParamRanges returns a copy of the configured parameter ranges.
func (m *Model) ParamRanges() map[string]Range {
	out := make(map[string]Range, len(m.ranges))
	for k, v := range m.ranges {
		out[k] = v
	}
	return out
}

// SetFitOptions replaces the optimizer budget used by FitGlobal and Profile.
func (m *Model) SetFitOptions(opts FitOptions) { m.fitOpts = opts }

// SetData replaces the model's dataset and bumps the dataset generation,
// which marks any cached global fit stale. The fit cache is kept (it is
// still inspectable) but Statistic will refuse to use it.
func (m *Model) SetData(ds *Dataset) {
	if ds == nil {
		ds = NewDataset(nil)
	}
	m.data = ds
	m.dataGen++
}

// Data returns the model's current dataset.
func (m *Model) Data() *Dataset { return m.data }

// DataGeneration returns the current dataset generation counter. A cached
// FitResult is valid only while its Generation equals this value.
func (m *Model) DataGeneration() uint64 { return m.dataGen }

// Evaluate returns the joint log-likelihood at p: the sum of every term's
// contribution plus the parameter-range soft-wall penalty. It fails with
// MissingParameterError if any needed name is absent, and with
// InvalidParameterError when a term rejects a value; neither is ever
// silently defaulted or clamped.
func (m *Model) Evaluate(p Params) (float64, error) {
	for _, name := range m.paramNeeded {
		if _, ok := p[name]; !ok {
			return 0, &MissingParameterError{Name: name}
		}
	}

	ll := m.rangePenalty(p)
	for _, t := range m.terms {
		c, err := t.LogLikelihood(m.data, p)
		if err != nil {
			return 0, fmt.Errorf("evaluating term %q: %w", t.Tag(), err)
		}
		ll += c
	}
	return ll, nil
}

// rangePenalty is the soft boundary term: parameters outside their allowed
// range contribute -exp(distance), steering the optimizer back without
// making the surface discontinuous.
func (m *Model) rangePenalty(p Params) float64 {
	penalty := 0.0
	for name, r := range m.ranges {
		v, ok := p[name]
		if !ok {
			continue
		}
		if v < r.Lo {
			penalty -= math.Exp(r.Lo - v)
		}
		if v > r.Hi {
			penalty -= math.Exp(v - r.Hi)
		}
	}
	return penalty
}

// View returns a human-readable structural description of each term: its
// kind and the expressions and templates it consumes. A debugging aid, not
// part of the numerical contract.
func (m *Model) View() string {
	var b strings.Builder
	for i, t := range m.terms {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s\n", t.Tag(), t.Describe())
	}
	return b.String()
}
