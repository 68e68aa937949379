package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/recalc/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full forest to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Forest   string // Rendered forest for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull forest:\n")
	if e.Forest == "" {
		fmt.Fprintf(&buf, "  (empty)\n")
	}
	for _, line := range strings.SplitAfter(e.Forest, "\n") {
		if line != "" {
			fmt.Fprintf(&buf, "  %s", line)
		}
	}

	return buf.String()
}

// expectedForest converts the scenario's expected tree to tasks.
// The scenario was validated on load, so refs parse.
func expectedForest(expected []ExpectedTask) []*ir.RecomputeTask {
	out := make([]*ir.RecomputeTask, 0, len(expected))
	for _, e := range expected {
		ref, _ := ir.ParseAttributeRef(e.Target)
		out = append(out, &ir.RecomputeTask{
			Target:     ref,
			RecordIDs:  ir.NewRecordSet(e.IDs...),
			Dependents: expectedForest(e.Dependents),
		})
	}
	return out
}

// compareForest checks that the built forest matches the expected one
// exactly, sibling order included.
func compareForest(expected []ExpectedTask, actual []*ir.RecomputeTask) error {
	want := ir.FormatForest(expectedForest(expected))
	got := ir.FormatForest(actual)
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     "expect",
		Expected: "\n" + indent(want),
		Actual:   "\n" + indent(got),
		Forest:   got,
	}
}

func indent(s string) string {
	if s == "" {
		return "    (empty)"
	}
	return "    " + strings.ReplaceAll(strings.TrimSuffix(s, "\n"), "\n", "\n    ")
}

// findTasks returns every task for target, anywhere in the forest.
func findTasks(forest []*ir.RecomputeTask, target ir.AttributeRef) []*ir.RecomputeTask {
	var found []*ir.RecomputeTask
	ir.Walk(forest, func(t *ir.RecomputeTask, _ int) bool {
		if t.Target == target {
			found = append(found, t)
		}
		return true
	})
	return found
}

// assertTaskPresent checks that a task for the target exists. With IDs,
// some task for the target must carry exactly those records.
func assertTaskPresent(forest []*ir.RecomputeTask, assertion Assertion) error {
	target, _ := ir.ParseAttributeRef(assertion.Target)
	found := findTasks(forest, target)

	if len(found) > 0 && len(assertion.IDs) == 0 {
		return nil
	}
	want := ir.NewRecordSet(assertion.IDs...)
	var seen []string
	for _, t := range found {
		if t.RecordIDs.Equal(want) {
			return nil
		}
		seen = append(seen, t.RecordIDs.String())
	}

	expected := fmt.Sprintf("task %s", assertion.Target)
	if len(assertion.IDs) > 0 {
		expected += " with records " + want.String()
	}
	actual := "not found in forest"
	if len(seen) > 0 {
		actual = "found with records " + strings.Join(seen, ", ")
	}
	return &AssertionError{
		Type:     AssertTaskPresent,
		Expected: expected,
		Actual:   actual,
		Forest:   ir.FormatForest(forest),
	}
}

// assertTaskAbsent checks that no task for the target exists.
func assertTaskAbsent(forest []*ir.RecomputeTask, assertion Assertion) error {
	target, _ := ir.ParseAttributeRef(assertion.Target)
	found := findTasks(forest, target)
	if len(found) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTaskAbsent,
		Expected: fmt.Sprintf("no task for %s", assertion.Target),
		Actual:   fmt.Sprintf("%d task(s)", len(found)),
		Forest:   ir.FormatForest(forest),
	}
}

// assertTaskCount checks the total number of tasks in the forest.
func assertTaskCount(forest []*ir.RecomputeTask, assertion Assertion) error {
	count := ir.CountTasks(forest)
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTaskCount,
		Expected: fmt.Sprintf("%d tasks", assertion.Count),
		Actual:   fmt.Sprintf("%d tasks", count),
		Forest:   ir.FormatForest(forest),
	}
}

// assertTaskOrder checks that the first occurrence of each target in the
// flattened work queue follows the given order. Targets need not be
// adjacent.
func assertTaskOrder(forest []*ir.RecomputeTask, assertion Assertion) error {
	// Step 1: Find first position of each expected target
	positions := make(map[string]int)
	for i, t := range ir.Flatten(forest) {
		key := t.Target.String()
		if _, ok := positions[key]; !ok {
			positions[key] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all targets found
	for _, target := range assertion.Targets {
		if positions[target] == 0 {
			return &AssertionError{
				Type:     AssertTaskOrder,
				Expected: fmt.Sprintf("all targets present: %v", assertion.Targets),
				Actual:   fmt.Sprintf("missing target: %s", target),
				Forest:   ir.FormatForest(forest),
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Targets); i++ {
		prev := assertion.Targets[i-1]
		curr := assertion.Targets[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTaskOrder,
				Expected: fmt.Sprintf("targets in order: %v", assertion.Targets),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Forest: ir.FormatForest(forest),
			}
		}
	}

	return nil
}

// assertCycleBroken checks that the build cut a cycle at the target.
func assertCycleBroken(result *Result, assertion Assertion) error {
	target, _ := ir.ParseAttributeRef(assertion.Target)
	var cuts []string
	if result.Report != nil {
		for _, cb := range result.Report.CyclesBroken {
			if cb.Target == target {
				return nil
			}
			cuts = append(cuts, cb.String())
		}
	}
	actual := "no cycles broken"
	if len(cuts) > 0 {
		actual = "cycles broken: " + strings.Join(cuts, "; ")
	}
	return &AssertionError{
		Type:     AssertCycleBroken,
		Expected: fmt.Sprintf("cycle broken at %s", assertion.Target),
		Actual:   actual,
		Forest:   ir.FormatForest(result.Tasks),
	}
}

// assertUnresolvableCount checks how many edges could not be resolved,
// counting failed edge lookups.
func assertUnresolvableCount(result *Result, assertion Assertion) error {
	count := 0
	if result.Report != nil {
		count = len(result.Report.Unresolvable) + len(result.Report.LookupFailures)
	}
	if count == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertUnresolvableCount,
		Expected: fmt.Sprintf("%d unresolvable edges", assertion.Count),
		Actual:   fmt.Sprintf("%d unresolvable edges", count),
		Forest:   ir.FormatForest(result.Tasks),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTaskPresent:
			err = assertTaskPresent(result.Tasks, assertion)
		case AssertTaskAbsent:
			err = assertTaskAbsent(result.Tasks, assertion)
		case AssertTaskCount:
			err = assertTaskCount(result.Tasks, assertion)
		case AssertTaskOrder:
			err = assertTaskOrder(result.Tasks, assertion)
		case AssertCycleBroken:
			err = assertCycleBroken(result, assertion)
		case AssertUnresolvableCount:
			err = assertUnresolvableCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
