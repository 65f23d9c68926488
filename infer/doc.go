// Package infer provides the core profile-likelihood inference engine.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - term.go: the Term interface and the built-in term kinds (Poisson count,
//     multi-source unbinned mixture, Gaussian constraint)
//   - model.go: the Model, which composes terms into one joint log-likelihood
//     over a named parameter vector and owns the observed dataset
//   - optimizer.go: global and profiled maximization via gonum's Nelder-Mead
//
// # Architecture
//
// A Model is assembled from Sources (template + rate function) and Terms, then
// driven through the fit cycle: SetData or SetDataFromToyMC, FitGlobal,
// Statistic. The profile-likelihood-ratio statistic for a hypothesis point is
//
//	t = 2 * (global max log-likelihood - profiled max log-likelihood)
//
// and is calibrated empirically by repeated toy simulation (see infer/calib).
//
// Sub-packages:
//   - infer/template/: named density templates loaded from a base directory
//   - infer/calib/: parallel Neyman-construction calibration of t
//
// Models own mutable state (dataset, cached global fit) and are not safe for
// concurrent use; calibration gives each worker its own Model. Templates are
// immutable after load and may be shared freely.
package infer
