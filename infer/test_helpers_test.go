package infer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xzh19980906/inference/infer/template"
)

// flatTemplate builds a uniform density on [0, 1] with the given norm.
func flatTemplate(t *testing.T, name string, norm float64) *template.Template {
	t.Helper()
	tpl, err := template.New(name, [][]float64{{0, 1}}, []float64{norm})
	require.NoError(t, err)
	return tpl
}

// peakedTemplate builds a density on [0, 1] with 90% of its mass below 0.5.
func peakedTemplate(t *testing.T, name string, norm float64) *template.Template {
	t.Helper()
	tpl, err := template.New(name, [][]float64{{0, 0.5, 1}}, []float64{0.9 * norm, 0.1 * norm})
	require.NoError(t, err)
	return tpl
}

// template2D builds a two-dimensional density on [0,1]x[0,1].
func template2D(t *testing.T, name string, norm float64) *template.Template {
	t.Helper()
	tpl, err := template.New(name, [][]float64{{0, 0.5, 1}, {0, 0.5, 1}}, []float64{norm / 4, norm / 4, norm / 4, norm / 4})
	require.NoError(t, err)
	return tpl
}

// twoSourceModel builds the standard test model: a flat background with rate
// 10^lg_bkg and a peaked signal with rate 10^lg_sig.
func twoSourceModel(t *testing.T) *Model {
	t.Helper()
	sources := []Source{
		{Name: "bkg", Template: flatTemplate(t, "bkg", 100), Rate: LgRate("lg_bkg")},
		{Name: "sig", Template: peakedTemplate(t, "sig", 50), Rate: LgRate("lg_sig")},
	}
	m, err := NewCountingModel(sources)
	require.NoError(t, err)
	m.SetParamRange("lg_bkg", -50, 50)
	m.SetParamRange("lg_sig", -50, 50)
	return m
}
