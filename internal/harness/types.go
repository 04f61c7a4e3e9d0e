package harness

import "github.com/roach88/registrar/internal/service"

// Trace event types.
const (
	EventInput = "input"
	EventCall  = "call"
	EventStep  = "step"
)

// TraceEvent is one entry of a scenario trace: an input applied, a
// collaborator call the engine made, or the step it returned.
type TraceEvent struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Seq  int64  `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains inputs, calls and steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalStep describes the step returned for the last input.
	FinalStep string `json:"final_step"`

	// Exported holds the accounts exported on completion.
	Exported []service.ExportedAccount `json:"exported,omitempty"`

	// StoreCleared reports whether the store held no mode and no state
	// when the flow finished.
	StoreCleared bool `json:"store_cleared"`

	seq int64
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event with the next sequence number.
func (r *Result) AddTrace(eventType, name string) {
	r.seq++
	r.Trace = append(r.Trace, TraceEvent{Type: eventType, Name: name, Seq: r.seq})
}

// Calls returns the names of collaborator calls in trace order.
func (r *Result) Calls() []string {
	var calls []string
	for _, e := range r.Trace {
		if e.Type == EventCall {
			calls = append(calls, e.Name)
		}
	}
	return calls
}
