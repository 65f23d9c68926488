package infer

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// === PoissonTerm ===

// PoissonTerm is the counting term: the probability of observing the
// dataset's event count given the total expected rate.
type PoissonTerm struct {
	tag  string
	rate Rate
}

// NewPoissonTerm creates a Poisson count term with the given total rate.
func NewPoissonTerm(tag string, rate Rate) *PoissonTerm {
	return &PoissonTerm{tag: tag, rate: rate}
}

func (t *PoissonTerm) Tag() string          { return t.tag }
func (t *PoissonTerm) ParamNames() []string { return t.rate.Names }

func (t *PoissonTerm) LogLikelihood(ds *Dataset, p Params) (float64, error) {
	lam := t.rate.Value(p)
	if math.IsNaN(lam) || lam <= 0 {
		return 0, &InvalidParameterError{
			Term:   t.tag,
			Name:   "lam",
			Value:  lam,
			Reason: "Poisson rate must be positive",
		}
	}
	return distuv.Poisson{Lambda: lam}.LogProb(float64(ds.Len())), nil
}

// SimulateCount draws a Poisson event count at the term's rate.
func (t *PoissonTerm) SimulateCount(p Params, rng *rand.Rand) (int, error) {
	lam := t.rate.Value(p)
	if math.IsNaN(lam) || lam <= 0 {
		return 0, &InvalidParameterError{
			Term:   t.tag,
			Name:   "lam",
			Value:  lam,
			Reason: "Poisson rate must be positive",
		}
	}
	return poissonRand(rng, lam), nil
}

func (t *PoissonTerm) Describe() string {
	return fmt.Sprintf("Poisson(\n\tn = len(data)\n\tlam = %s\n)", t.rate)
}

// === GaussianTerm ===

// GaussianTerm is an auxiliary (ancillary-measurement) constraint: a
// parameter-derived quantity is measured to be mu with uncertainty sigma.
type GaussianTerm struct {
	tag   string
	value Rate // the constrained quantity as a function of the parameters
	mu    float64
	sigma float64
}

// NewGaussianTerm creates a Gaussian constraint on value with mean mu and
// standard deviation sigma.
func NewGaussianTerm(tag string, value Rate, mu, sigma float64) (*GaussianTerm, error) {
	if sigma <= 0 || math.IsNaN(sigma) {
		return nil, &InvalidParameterError{
			Term:   tag,
			Name:   "sigma",
			Value:  sigma,
			Reason: "Gaussian width must be positive",
		}
	}
	return &GaussianTerm{tag: tag, value: value, mu: mu, sigma: sigma}, nil
}

func (t *GaussianTerm) Tag() string          { return t.tag }
func (t *GaussianTerm) ParamNames() []string { return t.value.Names }

func (t *GaussianTerm) LogLikelihood(_ *Dataset, p Params) (float64, error) {
	x := t.value.Value(p)
	if math.IsNaN(x) {
		return 0, &InvalidParameterError{
			Term:   t.tag,
			Name:   "x",
			Value:  x,
			Reason: "constrained value is NaN",
		}
	}
	return distuv.Normal{Mu: t.mu, Sigma: t.sigma}.LogProb(x), nil
}

func (t *GaussianTerm) Describe() string {
	return fmt.Sprintf("Gaussian(\n\tx = %s\n\tmu = %v\n\tstd = %v\n)", t.value, t.mu, t.sigma)
}

// === MultiSourceTerm ===

// MultiSourceTerm is the unbinned mixture-density term: each event's
// probability is the rate-weighted average of the source template densities.
type MultiSourceTerm struct {
	tag     string
	sources []Source
}

// NewMultiSourceTerm creates an unbinned mixture term over the given sources.
// All source templates must share one observable space dimensionality.
func NewMultiSourceTerm(tag string, sources []Source) (*MultiSourceTerm, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("term %q: at least one source required", tag)
	}
	dim := sources[0].Template.Dim()
	for _, s := range sources {
		if s.Template == nil {
			return nil, fmt.Errorf("term %q: source %q has no template", tag, s.Name)
		}
		if s.Template.Dim() != dim {
			return nil, fmt.Errorf("term %q: source %q template dimension %d != %d",
				tag, s.Name, s.Template.Dim(), dim)
		}
	}
	return &MultiSourceTerm{tag: tag, sources: sources}, nil
}

func (t *MultiSourceTerm) Tag() string { return t.tag }

func (t *MultiSourceTerm) ParamNames() []string {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, s := range t.sources {
		for _, n := range s.Rate.Names {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// Sources returns the term's source set. The model's simulator uses it to
// verify that simulate and evaluate share one generative factorization.
func (t *MultiSourceTerm) Sources() []Source { return t.sources }

func (t *MultiSourceTerm) LogLikelihood(ds *Dataset, p Params) (float64, error) {
	weights, total, err := t.weights(p)
	if err != nil {
		return 0, err
	}

	ll := 0.0
	for _, event := range ds.Events {
		density := 0.0
		for i, s := range t.sources {
			density += weights[i] / total * s.Template.Prob(event)
		}
		ll += math.Log(density)
	}
	return ll, nil
}

// weights evaluates all source rates, requiring a positive total.
func (t *MultiSourceTerm) weights(p Params) ([]float64, float64, error) {
	weights := make([]float64, len(t.sources))
	total := 0.0
	for i, s := range t.sources {
		w, err := s.rateValue(t.tag, p)
		if err != nil {
			return nil, 0, err
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return nil, 0, &InvalidParameterError{
			Term:   t.tag,
			Name:   "total rate",
			Value:  total,
			Reason: "mixture weights must have a positive sum",
		}
	}
	return weights, total, nil
}

func (t *MultiSourceTerm) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MultiSourceUnbinnedPDF(\n\tevents = data\n")
	for _, s := range t.sources {
		fmt.Fprintf(&b, "\t%s: template = %s, rate = %s\n", s.Name, s.Template.Name(), s.Rate)
	}
	b.WriteString(")")
	return b.String()
}
