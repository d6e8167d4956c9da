package harness

import "github.com/roach88/planq/internal/engine"

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name   string
	Caller string
	Result *engine.QueryResult
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause matched.
	Pass bool

	// Steps holds each step's result in scenario order.
	Steps []StepResult

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
