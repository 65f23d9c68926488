package infer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitGlobal_GaussianMeanRecovered(t *testing.T) {
	anc, err := NewGaussianTerm("anc", LinearRate("x"), 3, 1)
	require.NoError(t, err)
	m := NewModel(anc)

	fit, err := m.FitGlobal(Params{"x": 0})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, fit.Params["x"], 1e-3)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), fit.LogLikelihood, 1e-6)
	assert.Greater(t, fit.FuncEvaluations, 0)
	assert.Equal(t, m.DataGeneration(), fit.Generation)
}

func TestFitGlobal_PoissonZeroEventsDrivesRateToZero(t *testing.T) {
	// No events observed: the MLE rate is 0, approached from above since
	// non-positive rates are rejected outright.
	m := NewModel(NewPoissonTerm("poiss", LinearRate("rate")))
	m.SetParamRange("rate", 0, 100)
	m.SetData(NewDataset(nil))

	fit, err := m.FitGlobal(Params{"rate": 10})
	require.NoError(t, err)
	assert.Greater(t, fit.Params["rate"], 0.0)
	assert.Less(t, fit.Params["rate"], 0.5)
}

func TestFitGlobal_PoissonMLEMatchesCount(t *testing.T) {
	// n=40 events: the MLE of a pure Poisson rate is exactly n.
	events := make([][]float64, 40)
	for i := range events {
		events[i] = []float64{0.5}
	}
	m := NewModel(NewPoissonTerm("poiss", LinearRate("rate")))
	m.SetData(NewDataset(events))

	fit, err := m.FitGlobal(Params{"rate": 10})
	require.NoError(t, err)
	assert.InDelta(t, 40.0, fit.Params["rate"], 0.01)
}

func TestFitGlobal_MissingGuessParameterFailsFast(t *testing.T) {
	m := twoSourceModel(t)
	m.SetData(NewDataset(nil))

	_, err := m.FitGlobal(Params{"lg_bkg": 2})
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lg_sig", missing.Name)
}

func TestFitGlobal_BudgetExhaustionReportsBestPoint(t *testing.T) {
	m := twoSourceModel(t)
	require.NoError(t, m.SetDataFromToyMC(Params{"lg_bkg": 2, "lg_sig": 1}, rand.New(rand.NewSource(42))))
	m.SetFitOptions(FitOptions{MaxIterations: 1, MaxEvaluations: 50000})

	_, err := m.FitGlobal(Params{"lg_bkg": 2, "lg_sig": 1})
	var conv *ConvergenceError
	require.ErrorAs(t, err, &conv)
	assert.NotEmpty(t, conv.Status)
	assert.Contains(t, conv.Best, "lg_bkg")
	assert.Contains(t, conv.Best, "lg_sig")
	assert.False(t, math.IsNaN(conv.BestLogL))

	// A failed fit must not populate the cache.
	_, valid := m.MaxFit()
	assert.False(t, valid)
}

func TestProfile_EmptyGuessEvaluatesDirectly(t *testing.T) {
	anc, err := NewGaussianTerm("anc", LinearRate("x"), 3, 1)
	require.NoError(t, err)
	m := NewModel(anc)

	ll, profiled, err := m.Profile(Params{"x": 5}, nil)
	require.NoError(t, err)
	assert.Empty(t, profiled)

	direct, err := m.Evaluate(Params{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, direct, ll)
}

func TestProfile_MaximizesOnlyFreeParameters(t *testing.T) {
	// Two independent Gaussians; fix one coordinate, profile the other.
	a, err := NewGaussianTerm("a", LinearRate("x"), 1, 1)
	require.NoError(t, err)
	b, err := NewGaussianTerm("b", LinearRate("y"), -2, 1)
	require.NoError(t, err)
	m := NewModel(a, b)

	ll, profiled, err := m.Profile(Params{"x": 4}, Params{"y": 0})
	require.NoError(t, err)
	assert.InDelta(t, -2.0, profiled["y"], 1e-3)
	_, hasX := profiled["x"]
	assert.False(t, hasX, "fixed parameters must not appear in the profiled estimate")

	// x stays at 4 (4.5 sigma off), so the profiled maximum must carry the
	// full (x-1)^2/2 = 4.5 deficit relative to the global maximum.
	fit, err := m.FitGlobal(Params{"x": 0, "y": 0})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, fit.LogLikelihood-ll, 1e-3)
}

func TestProfile_RejectsParameterBothFixedAndProfiled(t *testing.T) {
	a, err := NewGaussianTerm("a", LinearRate("x"), 1, 1)
	require.NoError(t, err)
	b, err := NewGaussianTerm("b", LinearRate("y"), -2, 1)
	require.NoError(t, err)
	m := NewModel(a, b)

	_, _, err = m.Profile(Params{"x": 4}, Params{"x": 0, "y": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestWarnIfFlat_FlagsUninformativeDirection(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	// Curved in x, completely flat in u.
	eval := func(p Params) (float64, error) {
		return -p["x"] * p["x"], nil
	}
	warnIfFlat(eval, Params{"x": 0, "u": 1}, []string{"u", "x"})

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "flat likelihood")
	assert.Contains(t, entries[0].Message, `"u"`)
}

func TestFitGlobal_NoFlatWarningOnCurvedFit(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	anc, err := NewGaussianTerm("anc", LinearRate("x"), 3, 1)
	require.NoError(t, err)
	m := NewModel(anc)

	_, err = m.FitGlobal(Params{"x": 0})
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, "unexpected warning: %s", e.Message)
	}
}

func TestProfile_NeverExceedsGlobalMaximum(t *testing.T) {
	m := twoSourceModel(t)
	rng := rand.New(rand.NewSource(42))
	require.NoError(t, m.SetDataFromToyMC(Params{"lg_bkg": 2, "lg_sig": 1}, rng))

	fit, err := m.FitGlobal(Params{"lg_bkg": 2, "lg_sig": 1})
	require.NoError(t, err)

	for _, fixedSig := range []float64{0.5, 0.8, 1.0, 1.2, 1.5} {
		ll, _, err := m.Profile(Params{"lg_sig": fixedSig}, Params{"lg_bkg": 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, ll, fit.LogLikelihood+1e-6,
			"profiled maximum exceeds global maximum at lg_sig=%v", fixedSig)
	}
}
