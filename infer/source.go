package infer

import (
	"fmt"
	"math"

	"github.com/xzh19980906/inference/infer/template"
)

// Rate maps the parameter vector to a scalar expected event count. The same
// Rate values feed both the likelihood terms and the toy simulator, so the
// two always derive from one generative factorization.
type Rate struct {
	// Names lists the parameters the rate function reads. Every name is
	// folded into the owning model's ParamNeeded set.
	Names []string

	// Fn computes the rate. It is called only with vectors containing all
	// of Names; it must not read other parameters.
	Fn func(p Params) float64

	// Desc is a short human-readable formula for View output, e.g.
	// "10^lg_er_rate".
	Desc string
}

// Value evaluates the rate at p.
func (r Rate) Value(p Params) float64 {
	return r.Fn(p)
}

// String returns the rate's description, or a placeholder when unset.
func (r Rate) String() string {
	if r.Desc != "" {
		return r.Desc
	}
	return fmt.Sprintf("rate(%v)", r.Names)
}

// LgRate is a rate of 10^p[name], the log10 parameterization used for event
// rates spanning many orders of magnitude.
func LgRate(name string) Rate {
	return Rate{
		Names: []string{name},
		Fn:    func(p Params) float64 { return math.Pow(10, p[name]) },
		Desc:  fmt.Sprintf("10^%s", name),
	}
}

// LgScaledRate is scale * 10^p[name]. Typical use: a signal multiplier on a
// template's nominal yield, scale = template norm.
func LgScaledRate(name string, scale float64) Rate {
	return Rate{
		Names: []string{name},
		Fn:    func(p Params) float64 { return scale * math.Pow(10, p[name]) },
		Desc:  fmt.Sprintf("%v * 10^%s", scale, name),
	}
}

// LinearRate reads p[name] directly as an event count.
func LinearRate(name string) Rate {
	return Rate{
		Names: []string{name},
		Fn:    func(p Params) float64 { return p[name] },
		Desc:  name,
	}
}

// FixedRate is a constant rate independent of all parameters.
func FixedRate(v float64) Rate {
	return Rate{
		Fn:   func(Params) float64 { return v },
		Desc: fmt.Sprintf("%v", v),
	}
}

// SumRate is the sum of the given rates; its Names is their union.
func SumRate(rates ...Rate) Rate {
	names := make([]string, 0)
	seen := make(map[string]bool)
	desc := ""
	for _, r := range rates {
		for _, n := range r.Names {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
		if desc != "" {
			desc += " + "
		}
		desc += r.String()
	}
	return Rate{
		Names: names,
		Fn: func(p Params) float64 {
			total := 0.0
			for _, r := range rates {
				total += r.Fn(p)
			}
			return total
		},
		Desc: desc,
	}
}

// Source is one physical event source: a density template plus the rate at
// which the source contributes events. A model's sources drive both its
// mixture/count terms and its toy simulator.
type Source struct {
	Name     string
	Template *template.Template
	Rate     Rate
}

// rateValue evaluates the source rate, rejecting out-of-domain results.
func (s Source) rateValue(term string, p Params) (float64, error) {
	v := s.Rate.Value(p)
	if math.IsNaN(v) || v < 0 {
		return 0, &InvalidParameterError{
			Term:   term,
			Name:   "rate(" + s.Name + ")",
			Value:  v,
			Reason: "source rate must be a non-negative number",
		}
	}
	return v, nil
}
