package infer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleSourceModel builds a one-source counting model whose rate is
// 10^<param>, flat on [0, 1].
func singleSourceModel(t *testing.T, param string) *Model {
	t.Helper()
	sources := []Source{
		{Name: "bkg", Template: flatTemplate(t, "bkg", 100), Rate: LgRate(param)},
	}
	m, err := NewCountingModel(sources)
	require.NoError(t, err)
	m.SetParamRange(param, -50, 50)
	return m
}

func TestCombine_UnionAndIntersection(t *testing.T) {
	a := singleSourceModel(t, "lg_rate")
	a.SetParamRange("lg_rate", -10, 50)
	b := singleSourceModel(t, "lg_rate")
	b.SetParamRange("lg_rate", -50, 10)
	c := singleSourceModel(t, "lg_other")

	combined, err := Combine(a, b, c)
	require.NoError(t, err)

	assert.Equal(t, []string{"lg_other", "lg_rate"}, combined.ParamNeeded())
	assert.Equal(t, Range{Lo: -10, Hi: 10}, combined.ParamRanges()["lg_rate"])
	assert.Equal(t, Range{Lo: -50, Hi: 50}, combined.ParamRanges()["lg_other"])
}

func TestCombine_RequiresModels(t *testing.T) {
	_, err := Combine()
	assert.Error(t, err)
}

func TestCombinedModel_EvaluateSumsSubModels(t *testing.T) {
	a := singleSourceModel(t, "lg_rate")
	b := singleSourceModel(t, "lg_rate")
	a.SetData(NewDataset([][]float64{{0.2}}))
	b.SetData(NewDataset([][]float64{{0.8}}))

	combined, err := Combine(a, b)
	require.NoError(t, err)

	p := Params{"lg_rate": 0.5}
	llA, err := a.Evaluate(p)
	require.NoError(t, err)
	llB, err := b.Evaluate(p)
	require.NoError(t, err)
	llC, err := combined.Evaluate(p)
	require.NoError(t, err)
	assert.InDelta(t, llA+llB, llC, 1e-12)
}

func TestCombinedModel_MissingParameter(t *testing.T) {
	combined, err := Combine(singleSourceModel(t, "lg_rate"))
	require.NoError(t, err)

	_, err = combined.Evaluate(Params{})
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lg_rate", missing.Name)
}

func TestCombinedModel_SharedParameterFit(t *testing.T) {
	// Two exposures of the same source share one rate parameter; the
	// combined MLE sees both datasets.
	a := singleSourceModel(t, "lg_rate")
	b := singleSourceModel(t, "lg_rate")
	combined, err := Combine(a, b)
	require.NoError(t, err)

	truth := Params{"lg_rate": 2}
	rng := rand.New(rand.NewSource(42))
	require.NoError(t, combined.SetDataFromToyMC(truth, rng))

	fit, err := combined.FitGlobal(Params{"lg_rate": 1.5})
	require.NoError(t, err)

	// MLE of the shared rate: 10^lg = (n_a + n_b) / 2.
	want := math.Log10(float64(a.Data().Len()+b.Data().Len()) / 2)
	assert.InDelta(t, want, fit.Params["lg_rate"], 1e-3)
}

func TestCombinedModel_StatisticLifecycle(t *testing.T) {
	a := singleSourceModel(t, "lg_rate")
	b := singleSourceModel(t, "lg_rate")
	combined, err := Combine(a, b)
	require.NoError(t, err)

	truth := Params{"lg_rate": 2}
	rng := rand.New(rand.NewSource(42))

	// Statistic before any fit: stale.
	_, err = combined.Statistic(truth, nil)
	var stale *StaleFitError
	require.ErrorAs(t, err, &stale)

	require.NoError(t, combined.SetDataFromToyMC(truth, rng))
	_, err = combined.FitGlobal(Params{"lg_rate": 2})
	require.NoError(t, err)

	tval, err := combined.Statistic(Params{"lg_rate": 2}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tval, -0.05)
	assert.Less(t, tval, 10.0)

	// Any sub-model data change makes the combined fit stale.
	require.NoError(t, a.SetDataFromToyMC(truth, rng))
	_, err = combined.Statistic(truth, nil)
	require.ErrorAs(t, err, &stale)
}

func TestCombinedModel_RejectsOverlappingProfileSets(t *testing.T) {
	combined, err := Combine(singleSourceModel(t, "lg_rate"), singleSourceModel(t, "lg_rate"))
	require.NoError(t, err)

	_, _, err = combined.Profile(Params{"lg_rate": 1}, Params{"lg_rate": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"lg_rate"`)
}

func TestCombinedModel_ViewListsSubModels(t *testing.T) {
	combined, err := Combine(singleSourceModel(t, "lg_a"), singleSourceModel(t, "lg_b"))
	require.NoError(t, err)
	view := combined.View()
	assert.Contains(t, view, "sub-model 0")
	assert.Contains(t, view, "sub-model 1")
	assert.Contains(t, view, "10^lg_a")
	assert.Contains(t, view, "10^lg_b")
}
