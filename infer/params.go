package infer

import "sort"

// Params is a parameter vector: a mapping from parameter name to value.
// It is the only representation the engine's public operations accept or
// return for parameters.
type Params map[string]float64

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Params containing p overlaid with each of the given
// vectors in order. Later vectors win on name collisions.
func (p Params) Merge(others ...Params) Params {
	out := p.Clone()
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Names returns the parameter names in p, sorted. Sorting fixes the
// coordinate order handed to the optimizer, so identical inputs produce
// identical fits.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Range is an inclusive allowed interval for one parameter.
type Range struct {
	Lo float64
	Hi float64
}
