package infer

import "github.com/sirupsen/logrus"

// Statistic computes the profile-likelihood-ratio test statistic for a
// hypothesis point:
//
//	t = 2 * (global max log-likelihood - profiled max log-likelihood)
//
// where the profiled maximum holds fixed at its given values and maximizes
// over the parameters in guess. Requires a valid cached global fit; fails
// with *StaleFitError if FitGlobal has not run since the dataset last
// changed.
//
// t >= 0 when both optimizations converge to true optima. A negative value
// signals a profiling failure and is logged as a warning, never clipped to
// zero: clipping would mask the non-convergence.
func (m *Model) Statistic(fixed, guess Params) (float64, error) {
	t, _, err := m.StatisticProfile(fixed, guess)
	return t, err
}

// StatisticProfile is Statistic plus the profiled nuisance estimate.
func (m *Model) StatisticProfile(fixed, guess Params) (float64, Params, error) {
	fit, valid := m.MaxFit()
	if !valid {
		e := &StaleFitError{DataGeneration: m.dataGen}
		if fit != nil {
			e.FitGeneration = fit.Generation
		}
		return 0, nil, e
	}

	profLL, profiled, err := m.Profile(fixed, guess)
	if err != nil {
		return 0, nil, err
	}

	t := 2 * (fit.LogLikelihood - profLL)
	if t < 0 {
		logrus.Warnf("negative test statistic t=%v at hypothesis %v: profiled maximum exceeds the cached global maximum, likely optimizer non-convergence", t, fixed)
	}
	return t, profiled, nil
}
