package infer

import (
	"fmt"
	"math"
	"math/rand"
)

// Simulate draws a toy dataset from the model at the given true parameters:
// a Poisson total event count from the combined source rate, a source label
// per event with probability proportional to the source rates, and feature
// values from the chosen source's template. The rates are the same Rate
// values the likelihood terms read, so inference of trueParams from a
// simulated dataset is unbiased in expectation.
func (m *Model) Simulate(trueParams Params, rng *rand.Rand) (*Dataset, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("model has no generative sources; build it with NewCountingModel or NewModelWithSources to simulate")
	}
	for _, name := range m.paramNeeded {
		if _, ok := trueParams[name]; !ok {
			return nil, &MissingParameterError{Name: name}
		}
	}

	rates := make([]float64, len(m.sources))
	total := 0.0
	for i, s := range m.sources {
		r, err := s.rateValue("simulate", trueParams)
		if err != nil {
			return nil, err
		}
		rates[i] = r
		total += r
	}
	if total <= 0 {
		return nil, &InvalidParameterError{
			Term:   "simulate",
			Name:   "total rate",
			Value:  total,
			Reason: "combined source rate must be positive",
		}
	}

	n := poissonRand(rng, total)
	counts := multinomialRand(rng, n, rates, total)

	events := make([][]float64, 0, n)
	for i, s := range m.sources {
		events = append(events, s.Template.SampleN(rng, counts[i])...)
	}
	return NewDataset(events), nil
}

// SetDataFromToyMC simulates a dataset at trueParams and installs it as the
// model's observed data, marking any cached global fit stale.
func (m *Model) SetDataFromToyMC(trueParams Params, rng *rand.Rand) error {
	ds, err := m.Simulate(trueParams, rng)
	if err != nil {
		return err
	}
	m.SetData(ds)
	return nil
}

// poissonRand draws from Poisson(lambda) by Knuth's multiplication method,
// chunked so exp(-lambda) never underflows for large rates.
func poissonRand(rng *rand.Rand, lambda float64) int {
	n := 0
	for lambda > 0 {
		chunk := math.Min(lambda, 500)
		threshold := math.Exp(-chunk)
		k := 0
		p := 1.0
		for p > threshold {
			k++
			p *= rng.Float64()
		}
		n += k - 1
		lambda -= chunk
	}
	return n
}

// multinomialRand splits n events across sources with probability
// proportional to each source's rate.
func multinomialRand(rng *rand.Rand, n int, rates []float64, total float64) []int {
	counts := make([]int, len(rates))
	for i := 0; i < n; i++ {
		u := rng.Float64() * total
		cum := 0.0
		idx := len(rates) - 1
		for i, r := range rates {
			cum += r
			if u < cum {
				idx = i
				break
			}
		}
		counts[idx]++
	}
	return counts
}
