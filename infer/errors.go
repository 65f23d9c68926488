package infer

import "fmt"

// MissingParameterError reports a parameter required by the model's terms
// that was absent from a supplied parameter vector.
type MissingParameterError struct {
	Name string // the missing parameter name
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q required by the model", e.Name)
}

// InvalidParameterError reports a supplied value outside a term's domain
// (e.g. a non-positive rate). The engine rejects rather than clamps: silent
// clamping would bias the optimizer.
type InvalidParameterError struct {
	Term   string  // tag of the term that rejected the value
	Name   string  // offending quantity
	Value  float64 // offending value
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("term %q: invalid %s = %v: %s", e.Term, e.Name, e.Value, e.Reason)
}

// ConvergenceError reports an optimization that exhausted its evaluation or
// iteration budget without meeting the convergence tolerance. Best carries
// the best point found so the caller can inspect it or retry from a
// different guess; it is never silently treated as a valid fit.
type ConvergenceError struct {
	Status          string  // optimizer termination status
	Best            Params  // best point found before termination
	BestLogL        float64 // log-likelihood at Best
	FuncEvaluations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("optimizer failed to converge (%s) after %d evaluations; best log-likelihood %v",
		e.Status, e.FuncEvaluations, e.BestLogL)
}

// StaleFitError reports a statistic request without a valid cached global
// fit: either FitGlobal was never called, or the dataset changed since the
// last call. Generations are the dataset generation counters involved.
type StaleFitError struct {
	FitGeneration  uint64 // dataset generation the cached fit was computed on (0 = no fit)
	DataGeneration uint64 // current dataset generation
}

func (e *StaleFitError) Error() string {
	if e.FitGeneration == 0 {
		return "no cached global fit: call FitGlobal before Statistic"
	}
	return fmt.Sprintf("cached global fit is stale: fit generation %d, dataset generation %d; re-run FitGlobal",
		e.FitGeneration, e.DataGeneration)
}

// SimulationInconsistencyError reports a model whose toy simulator and
// likelihood would not derive from the same generative factorization. This
// is an internal-invariant violation detected at model assembly, not a
// recoverable runtime condition.
type SimulationInconsistencyError struct {
	Term   string
	Reason string
}

func (e *SimulationInconsistencyError) Error() string {
	return fmt.Sprintf("simulate/evaluate inconsistency in term %q: %s", e.Term, e.Reason)
}
