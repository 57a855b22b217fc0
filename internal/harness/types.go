package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64    `json:"seq"`
	Op     string   `json:"op"`
	Key    string   `json:"key"`
	Value  string   `json:"value,omitempty"`
	Result string   `json:"result,omitempty"`
	Values []string `json:"values,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes every failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
