package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/recalc/internal/ir"
)

// CascadeSnapshot captures the complete outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type CascadeSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	BuildID      string              `json:"build_id"`
	Trigger      string              `json:"trigger"`
	Source       string              `json:"source"`
	Changed      []string            `json:"changed"`
	Tasks        []*ir.RecomputeTask `json:"tasks"`
	CyclesBroken []string            `json:"cycles_broken"`
	Unresolvable int                 `json:"unresolvable"`
}

// NewCascadeSnapshot builds the snapshot of a scenario's result.
func NewCascadeSnapshot(scenario *Scenario, result *Result) CascadeSnapshot {
	snap := CascadeSnapshot{
		ScenarioName: scenario.Name,
		Trigger:      scenario.Change.Kind(),
		Source:       scenario.Change.Attribute,
		Changed:      ir.NewRecordSet(scenario.Change.IDs...).IDs(),
		Tasks:        result.Tasks,
		CyclesBroken: []string{},
	}
	if snap.Trigger == TriggerCreated {
		snap.Source = scenario.Change.Owner
	}
	if r := result.Report; r != nil {
		snap.BuildID = r.BuildID
		snap.Changed = r.Changed.IDs()
		for _, cb := range r.CyclesBroken {
			snap.CyclesBroken = append(snap.CyclesBroken, cb.String())
		}
		snap.Unresolvable = len(r.Unresolvable) + len(r.LookupFailures)
	}
	return snap
}

// toCanonicalMap converts a CascadeSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles plain maps, slices and primitives.
func (s *CascadeSnapshot) toCanonicalMap() map[string]any {
	changed := make([]any, len(s.Changed))
	for i, id := range s.Changed {
		changed[i] = id
	}
	cycles := make([]any, len(s.CyclesBroken))
	for i, c := range s.CyclesBroken {
		cycles[i] = c
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"build_id":      s.BuildID,
		"trigger":       s.Trigger,
		"source":        s.Source,
		"changed":       changed,
		"tasks":         ir.CanonicalForest(s.Tasks),
		"cycles_broken": cycles,
		"unresolvable":  s.Unresolvable,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *CascadeSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against the scenario's
// golden file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := NewCascadeSnapshot(scenario, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
