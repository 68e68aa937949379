// Package harness provides conformance testing for recalc schemas.
//
// The harness loads a CUE schema, seeds documents and link instances into
// a fresh store, builds the cascade for one change event, and checks the
// resulting task forest against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: schemas/orders.cue
//	documents:
//	  C2: [c2a, c2b]
//	  C4: [d4]
//	links:
//	  - id: k1
//	    link_type: L24
//	    documents: [c2a, d4]
//	change:
//	  attribute: collection:C4.a4
//	  ids: [d4]
//	expect:
//	  - target: collection:C2.a2
//	    ids: [c2a, c2b]
//	    dependents: [...]
//	assertions:
//	  - type: task_present
//	    target: collection:C1.a1
//	    ids: [c1a, c1b]
//	  - type: cycle_broken
//	    target: collection:C2.a3
//
// The schema path is relative to the scenario file.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - task_present: a task for target exists (with exactly ids, if given)
//   - task_absent: no task for target exists anywhere in the forest
//   - task_count: the forest has exactly count tasks
//   - task_order: targets appear in this order in the flattened work queue
//   - cycle_broken: the build cut a cycle at target
//   - unresolvable_count: exactly count edges could not be resolved
//
// # Deterministic Testing
//
// Every scenario runs with a fixed build id (scenario.build_id, or
// "test-build-default") in an isolated in-memory SQLite database, so the
// canonical snapshot of a run is identical across runs and machines.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/order_totals.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
