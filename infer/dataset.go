package infer

// Dataset is an ordered collection of observed events. Each event is a point
// in the templates' observable space (one value per feature axis). Order is
// irrelevant to the likelihood but fixed once drawn.
//
// A Dataset is owned by the Model holding it and is replaced only through
// SetData or SetDataFromToyMC; it is never mutated in place by the engine.
type Dataset struct {
	Events [][]float64
}

// NewDataset wraps a slice of events. The slice is taken over, not copied.
func NewDataset(events [][]float64) *Dataset {
	return &Dataset{Events: events}
}

// Len returns the number of events.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Events)
}
