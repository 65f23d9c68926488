package infer

// Term is one factor in a joint log-likelihood. Implementations share a
// single numerical contract: given the model-owned dataset and a full
// parameter vector, return a scalar log-likelihood contribution.
//
// New term kinds are added by implementing this interface; the Model never
// needs to know the variant set.
type Term interface {
	// Tag returns the term's identifier within the model, used in error
	// messages and View output.
	Tag() string

	// ParamNames returns the names of all parameters the term reads.
	// The model checks presence centrally before evaluation, so
	// LogLikelihood may index the vector directly.
	ParamNames() []string

	// LogLikelihood returns the term's log-likelihood contribution. It must
	// be a pure function of (ds, p) and reject out-of-domain values with an
	// InvalidParameterError rather than clamping them.
	LogLikelihood(ds *Dataset, p Params) (float64, error)

	// Describe returns a human-readable structural description of the term
	// for View output. Not part of the numerical contract.
	Describe() string
}
