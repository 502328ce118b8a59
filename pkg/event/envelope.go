package event

// ResultEnvelope is the directory's result shape, and the shape returned to
// callers after merging, filtering and sorting.
type ResultEnvelope struct {
	ResultsStart     int     `json:"results_start"`
	ResultsReturned  int     `json:"results_returned"`
	ResultsAvailable int     `json:"results_available"`
	Events           []Event `json:"events"`
}

// NewEnvelope wraps events in an envelope whose counters are computed from
// the events themselves. Stale counters from an upstream partial response are
// never carried over. A nil slice is normalized to an empty one so the JSON
// form is always a list.
func NewEnvelope(events []Event) *ResultEnvelope {
	if events == nil {
		events = []Event{}
	}
	return &ResultEnvelope{
		ResultsStart:     1,
		ResultsReturned:  len(events),
		ResultsAvailable: len(events),
		Events:           events,
	}
}

// Consistent reports whether ResultsReturned matches the event count.
func (r *ResultEnvelope) Consistent() bool {
	return r.ResultsReturned == len(r.Events)
}

// ErrorResult is returned to callers instead of a ResultEnvelope. A response
// is always exactly one of the two.
type ErrorResult struct {
	Error string `json:"error"`
}
