package engine

import (
	"errors"
	"fmt"
)

// TaskBudget caps the number of tasks a single build may materialize.
//
// The cycle guard bounds the depth of every branch, but an acyclic graph
// with heavy fan-in and fan-out can still expand into a very large tree,
// since sibling branches do not share state. The budget is a safety valve
// for such schemas.
//
// CRITICAL DISTINCTION from the Cycle Guard:
//   - Cycle Guard: Catches recursive patterns (A → B → A)
//   - Task Budget: Catches combinatorial expansion (A → {B, C} → {D, E} → ...)
//
// A zero limit means unlimited, which is the default.
type TaskBudget struct {
	limit   int
	current int
}

// NewTaskBudget creates a budget with the given limit (0 = unlimited).
func NewTaskBudget(limit int) *TaskBudget {
	return &TaskBudget{limit: limit}
}

// Take consumes one task from the budget.
//
// Returns BudgetExceededError once the limit has been reached; the task
// must not be materialized.
func (b *TaskBudget) Take() error {
	if b.limit > 0 && b.current >= b.limit {
		return &BudgetExceededError{Limit: b.limit}
	}
	b.current++
	return nil
}

// Current returns the number of tasks taken.
func (b *TaskBudget) Current() int {
	return b.current
}

// Limit returns the configured limit (0 = unlimited).
func (b *TaskBudget) Limit() int {
	return b.limit
}

// BudgetExceededError is reported when a build stops materializing tasks
// because its TaskBudget ran out. The forest returned is a prefix of the
// full cascade.
type BudgetExceededError struct {
	Limit int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("cascade exceeded task budget of %d", e.Limit)
}

// IsBudgetExceeded returns true if the error is a BudgetExceededError.
// Uses errors.As to handle wrapped errors.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
