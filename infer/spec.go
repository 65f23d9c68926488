package infer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xzh19980906/inference/infer/template"
)

// ModelSpec is the top-level model configuration.
// Loaded from YAML via LoadModelSpec(path).
type ModelSpec struct {
	Name        string                `yaml:"name"`
	Sources     []SourceSpec          `yaml:"sources"`
	Constraints []ConstraintSpec      `yaml:"constraints,omitempty"`
	Ranges      map[string][2]float64 `yaml:"ranges,omitempty"`
	Fit         *FitSpec              `yaml:"fit,omitempty"`
}

// SourceSpec defines one physical source: its template and how its expected
// rate derives from a named parameter.
type SourceSpec struct {
	Name      string `yaml:"name"`
	Template  string `yaml:"template"`
	RateParam string `yaml:"rate_param"`
	// Scale selects the parameterization: "lg" (rate = 10^param, default)
	// or "linear" (rate = param).
	Scale string `yaml:"scale,omitempty"`
	// NormScaled multiplies the rate by the template norm, the usual form
	// for a signal-strength multiplier on a nominal yield.
	NormScaled bool `yaml:"norm_scaled,omitempty"`
}

// ConstraintSpec defines a Gaussian ancillary constraint on one source's
// rate: mean = the source template's norm, std = relative_std * norm.
type ConstraintSpec struct {
	Tag         string  `yaml:"tag"`
	Source      string  `yaml:"source"`
	RelativeStd float64 `yaml:"relative_std"`
}

// FitSpec overrides the optimizer budget.
type FitSpec struct {
	MaxIterations  int `yaml:"max_iterations,omitempty"`
	MaxEvaluations int `yaml:"max_evaluations,omitempty"`
}

// LoadModelSpec reads and validates a ModelSpec from a YAML file.
func LoadModelSpec(path string) (*ModelSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model spec: %w", err)
	}
	var spec ModelSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parsing model spec %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model spec %s: %w", path, err)
	}
	return &spec, nil
}

// Validate checks structural consistency before any template I/O.
func (s *ModelSpec) Validate() error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("at least one source required")
	}

	seen := make(map[string]bool)
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: empty name", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if src.Template == "" {
			return fmt.Errorf("source %q: empty template name", src.Name)
		}
		if src.RateParam == "" {
			return fmt.Errorf("source %q: empty rate_param", src.Name)
		}
		switch src.Scale {
		case "", "lg", "linear":
		default:
			return fmt.Errorf("source %q: unknown scale %q (want lg or linear)", src.Name, src.Scale)
		}
	}

	for _, con := range s.Constraints {
		if con.Tag == "" {
			return fmt.Errorf("constraint on %q: empty tag", con.Source)
		}
		if !seen[con.Source] {
			return fmt.Errorf("constraint %q references unknown source %q", con.Tag, con.Source)
		}
		if con.RelativeStd <= 0 {
			return fmt.Errorf("constraint %q: relative_std must be positive, got %v", con.Tag, con.RelativeStd)
		}
	}

	for name, r := range s.Ranges {
		if r[0] >= r[1] {
			return fmt.Errorf("range for %q: lower bound %v not below upper bound %v", name, r[0], r[1])
		}
	}
	return nil
}

// Build assembles the Model, loading templates from the store. The configured
// sources become both the likelihood's count + mixture terms and the toy
// simulator's generative factorization.
func (s *ModelSpec) Build(store *template.Store) (*Model, error) {
	sources := make([]Source, len(s.Sources))
	byName := make(map[string]Source, len(s.Sources))
	for i, src := range s.Sources {
		tpl, err := store.Load(src.Template)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name, err)
		}

		param, norm := src.RateParam, tpl.Norm()
		var rate Rate
		switch {
		case src.Scale == "linear" && src.NormScaled:
			rate = Rate{
				Names: []string{param},
				Fn:    func(p Params) float64 { return norm * p[param] },
				Desc:  fmt.Sprintf("%v * %s", norm, param),
			}
		case src.Scale == "linear":
			rate = LinearRate(param)
		case src.NormScaled:
			rate = LgScaledRate(param, norm)
		default:
			rate = LgRate(param)
		}

		sources[i] = Source{Name: src.Name, Template: tpl, Rate: rate}
		byName[src.Name] = sources[i]
	}

	extra := make([]Term, 0, len(s.Constraints))
	for _, con := range s.Constraints {
		src := byName[con.Source]
		norm := src.Template.Norm()
		term, err := NewGaussianTerm(con.Tag, src.Rate, norm, con.RelativeStd*norm)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", con.Tag, err)
		}
		extra = append(extra, term)
	}

	m, err := NewCountingModel(sources, extra...)
	if err != nil {
		return nil, err
	}
	for name, r := range s.Ranges {
		m.SetParamRange(name, r[0], r[1])
	}
	if s.Fit != nil {
		opts := DefaultFitOptions()
		if s.Fit.MaxIterations > 0 {
			opts.MaxIterations = s.Fit.MaxIterations
		}
		if s.Fit.MaxEvaluations > 0 {
			opts.MaxEvaluations = s.Fit.MaxEvaluations
		}
		m.SetFitOptions(opts)
	}
	return m, nil
}
