package calib

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Summary condenses a calibration batch for reports and threshold tables.
type Summary struct {
	Toys     int     `yaml:"toys"`
	Kept     int     `yaml:"kept"`
	Failures int     `yaml:"failures"`
	Mean     float64 `yaml:"mean"`
	StdDev   float64 `yaml:"std_dev"`
	Median   float64 `yaml:"median"`
	Q90      float64 `yaml:"q90"`
	Q95      float64 `yaml:"q95"`
	Q99      float64 `yaml:"q99"`
}

// Summarize computes the batch summary.
func Summarize(r *Result) (*Summary, error) {
	if len(r.Stats) == 0 {
		return nil, fmt.Errorf("no converged toys to summarize (%d failures)", r.Failures)
	}

	mean, err := stats.Mean(r.Stats)
	if err != nil {
		return nil, err
	}
	stdDev, err := stats.StandardDeviation(r.Stats)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(r.Stats)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Toys:     r.Toys,
		Kept:     len(r.Stats),
		Failures: r.Failures,
		Mean:     mean,
		StdDev:   stdDev,
		Median:   median,
		Q90:      r.Quantile(0.90),
		Q95:      r.Quantile(0.95),
		Q99:      r.Quantile(0.99),
	}, nil
}

// WilksPValue is the chi-square tail probability of an observed statistic
// with the given degrees of freedom. It is a reference aid for comparing
// the empirical distribution against the asymptotic (Wilks) regime; the
// engine itself makes no asymptotic assumption.
func WilksPValue(observed float64, dof int) float64 {
	if observed <= 0 {
		return 1
	}
	return 1 - distuv.ChiSquared{K: float64(dof)}.CDF(observed)
}

// WilksQuantile is the chi-square q-quantile with the given degrees of
// freedom, the asymptotic counterpart of Result.Quantile.
func WilksQuantile(q float64, dof int) float64 {
	return distuv.ChiSquared{K: float64(dof)}.Quantile(q)
}
