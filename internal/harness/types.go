package harness

import (
	"github.com/roach88/recalc/internal/engine"
	"github.com/roach88/recalc/internal/ir"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expected forest and all assertions match.
	Pass bool `json:"pass"`

	// Tasks is the cascade forest the build produced.
	Tasks []*ir.RecomputeTask `json:"tasks"`

	// Report carries the build's recovered conditions (cycles, unresolvable
	// edges) for assertions and snapshots.
	Report *engine.Report `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Tasks:  []*ir.RecomputeTask{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
