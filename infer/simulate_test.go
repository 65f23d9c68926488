package infer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoissonRand_MeanAndVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, lambda := range []float64{3, 100, 1200} { // 1200 exercises chunking
		n := 5000
		sum, sumSq := 0.0, 0.0
		for i := 0; i < n; i++ {
			v := float64(poissonRand(rng, lambda))
			sum += v
			sumSq += v * v
		}
		mean := sum / float64(n)
		variance := sumSq/float64(n) - mean*mean

		if math.Abs(mean-lambda)/lambda > 0.05 {
			t.Errorf("lambda=%v: mean = %.2f, want ≈ %v (within 5%%)", lambda, mean, lambda)
		}
		if math.Abs(variance-lambda)/lambda > 0.15 {
			t.Errorf("lambda=%v: variance = %.2f, want ≈ %v (within 15%%)", lambda, variance, lambda)
		}
	}
}

func TestMultinomialRand_Proportions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rates := []float64{60, 30, 10}
	counts := multinomialRand(rng, 30000, rates, 100)

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 30000, total)
	for i, r := range rates {
		frac := float64(counts[i]) / 30000
		if math.Abs(frac-r/100) > 0.02 {
			t.Errorf("source %d fraction = %.3f, want ≈ %.2f", i, frac, r/100)
		}
	}
}

func TestSimulate_CountMatchesCombinedRate(t *testing.T) {
	m := twoSourceModel(t)
	truth := Params{"lg_bkg": 2, "lg_sig": math.Log10(50)}
	rng := rand.New(rand.NewSource(42))

	toys := 300
	sum := 0.0
	for i := 0; i < toys; i++ {
		ds, err := m.Simulate(truth, rng)
		require.NoError(t, err)
		sum += float64(ds.Len())
	}
	mean := sum / float64(toys)
	// Combined rate 150; the toy mean should sit well within 5%.
	if math.Abs(mean-150)/150 > 0.05 {
		t.Errorf("mean toy count = %.1f, want ≈ 150 (within 5%%)", mean)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	m := twoSourceModel(t)
	truth := Params{"lg_bkg": 2, "lg_sig": 1}

	a, err := m.Simulate(truth, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := m.Simulate(truth, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a.Events, b.Events)
}

func TestSimulate_RequiresSourcesAndParams(t *testing.T) {
	// A term-only model has no generative factorization to draw from.
	bare := NewModel(NewPoissonTerm("poiss", LinearRate("rate")))
	_, err := bare.Simulate(Params{"rate": 5}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	m := twoSourceModel(t)
	_, err = m.Simulate(Params{"lg_bkg": 2}, rand.New(rand.NewSource(1)))
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lg_sig", missing.Name)
}

func TestSetDataFromToyMC_ReplacesDataAndMarksFitStale(t *testing.T) {
	m := twoSourceModel(t)
	truth := Params{"lg_bkg": 2, "lg_sig": 1}
	rng := rand.New(rand.NewSource(42))

	require.NoError(t, m.SetDataFromToyMC(truth, rng))
	g1 := m.DataGeneration()
	_, err := m.FitGlobal(truth.Clone())
	require.NoError(t, err)
	_, valid := m.MaxFit()
	assert.True(t, valid)

	require.NoError(t, m.SetDataFromToyMC(truth, rng))
	assert.Equal(t, g1+1, m.DataGeneration())
	_, valid = m.MaxFit()
	assert.False(t, valid, "cached fit must be stale after a dataset change")
}
