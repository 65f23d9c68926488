// Package template provides named probability-density templates over an
// observable feature space, loaded from a configured base directory.
//
// A Template is a binned density: per-dimension bin edges plus a count per
// bin. Norm is the raw count sum and represents the expected event yield at
// the reference rate. Templates are immutable after construction and may be
// shared across goroutines without synchronization.
package template

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// densityFloor is the minimum density returned by Prob. Events falling
// outside the binned support would otherwise produce log(0) and poison the
// likelihood sum.
const densityFloor = 1e-99

// Template is an immutable named density over an n-dimensional observable
// space, with a normalization representing an expected yield.
type Template struct {
	name string
	axes [][]float64 // bin edges, one slice per dimension
	norm float64     // raw count sum (expected yield at reference rate)

	density []float64 // per-bin probability density (integrates to 1)
	cdf     []float64 // per-bin cumulative probability mass, for sampling
	dims    []int     // bin count per dimension
}

// New constructs a Template from per-dimension bin edges and a flattened
// (row-major) count per bin. Counts must be non-negative with a positive sum.
func New(name string, axes [][]float64, counts []float64) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("template: empty name")
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("template %q: no axes", name)
	}

	dims := make([]int, len(axes))
	nBins := 1
	for d, edges := range axes {
		if len(edges) < 2 {
			return nil, fmt.Errorf("template %q: axis %d needs at least 2 bin edges, got %d", name, d, len(edges))
		}
		for i := 1; i < len(edges); i++ {
			if edges[i] <= edges[i-1] {
				return nil, fmt.Errorf("template %q: axis %d edges not strictly increasing at index %d", name, d, i)
			}
		}
		dims[d] = len(edges) - 1
		nBins *= dims[d]
	}
	if len(counts) != nBins {
		return nil, fmt.Errorf("template %q: got %d counts, want %d (product of per-axis bin counts)", name, len(counts), nBins)
	}

	norm := 0.0
	for i, c := range counts {
		if c < 0 || math.IsNaN(c) {
			return nil, fmt.Errorf("template %q: bin %d has invalid count %v", name, i, c)
		}
		norm += c
	}
	if norm <= 0 {
		return nil, fmt.Errorf("template %q: count sum must be positive, got %v", name, norm)
	}

	t := &Template{
		name:    name,
		axes:    axes,
		norm:    norm,
		density: make([]float64, nBins),
		cdf:     make([]float64, nBins),
		dims:    dims,
	}
	cum := 0.0
	for i, c := range counts {
		t.density[i] = c / norm / t.binVolume(i)
		cum += c / norm
		t.cdf[i] = cum
	}
	t.cdf[nBins-1] = 1.0
	return t, nil
}

// Name returns the template's name.
func (t *Template) Name() string { return t.name }

// Dim returns the dimensionality of the observable space.
func (t *Template) Dim() int { return len(t.axes) }

// Norm returns the expected event yield at the reference rate.
func (t *Template) Norm() float64 { return t.norm }

// Prob returns the probability density at the given event. Events outside
// the binned support return a small positive floor rather than zero.
func (t *Template) Prob(event []float64) float64 {
	flat, ok := t.locate(event)
	if !ok {
		return densityFloor
	}
	return math.Max(t.density[flat], densityFloor)
}

// LogProb returns log(Prob(event)).
func (t *Template) LogProb(event []float64) float64 {
	return math.Log(t.Prob(event))
}

// Sample draws one event from the template density: a bin by inverse CDF,
// then a uniform position within the bin.
func (t *Template) Sample(rng *rand.Rand) []float64 {
	flat := sort.SearchFloat64s(t.cdf, rng.Float64())
	if flat >= len(t.cdf) {
		flat = len(t.cdf) - 1
	}

	event := make([]float64, len(t.axes))
	for d, idx := range t.unflatten(flat) {
		lo, hi := t.axes[d][idx], t.axes[d][idx+1]
		event[d] = lo + rng.Float64()*(hi-lo)
	}
	return event
}

// SampleN draws n independent events.
func (t *Template) SampleN(rng *rand.Rand, n int) [][]float64 {
	events := make([][]float64, n)
	for i := range events {
		events[i] = t.Sample(rng)
	}
	return events
}

// locate maps an event to its flattened bin index. ok is false when the
// event has the wrong dimensionality or falls outside the edges.
func (t *Template) locate(event []float64) (int, bool) {
	if len(event) != len(t.axes) {
		return 0, false
	}
	flat := 0
	for d, edges := range t.axes {
		x := event[d]
		if x < edges[0] || x > edges[len(edges)-1] {
			return 0, false
		}
		// SearchFloat64s finds the first edge >= x; bin index is one left of it.
		idx := sort.SearchFloat64s(edges, x) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= t.dims[d] {
			idx = t.dims[d] - 1
		}
		flat = flat*t.dims[d] + idx
	}
	return flat, true
}

// unflatten converts a flattened bin index back to per-dimension indices.
func (t *Template) unflatten(flat int) []int {
	idx := make([]int, len(t.dims))
	for d := len(t.dims) - 1; d >= 0; d-- {
		idx[d] = flat % t.dims[d]
		flat /= t.dims[d]
	}
	return idx
}

// binVolume returns the volume of the bin at the given flattened index.
func (t *Template) binVolume(flat int) float64 {
	vol := 1.0
	for d, idx := range t.unflatten(flat) {
		vol *= t.axes[d][idx+1] - t.axes[d][idx]
	}
	return vol
}
