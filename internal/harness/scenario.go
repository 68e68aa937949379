package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recalc/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario seeds relation data under a schema, applies one change event,
// and asserts on the cascade the builder produces.
type Scenario struct {
	// Name uniquely identifies this scenario.
	// Also names the golden file: testdata/golden/{name}.golden
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the CUE schema file.
	// Relative paths are resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Documents maps collection id to the ids of its documents.
	Documents map[string][]string `yaml:"documents,omitempty"`

	// Links lists the link instances between documents.
	Links []LinkStep `yaml:"links,omitempty"`

	// Change is the triggering change event.
	Change ChangeStep `yaml:"change"`

	// Expect is the complete expected forest, compared exactly (order
	// included). If nil, only assertions are checked.
	Expect []ExpectedTask `yaml:"expect,omitempty"`

	// Assertions validate parts of the forest and the build report.
	// Supported types: task_present, task_absent, task_count, task_order,
	// cycle_broken, unresolvable_count
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// MaxTasks caps the build (0 = unlimited).
	MaxTasks int `yaml:"max_tasks,omitempty"`

	// BuildID is an optional fixed build id for deterministic tests.
	// If empty, defaults to "test-build-default".
	BuildID string `yaml:"build_id,omitempty"`
}

// LinkStep declares one link instance.
type LinkStep struct {
	ID        string   `yaml:"id"`
	LinkType  string   `yaml:"link_type"`
	Documents []string `yaml:"documents"`
}

// ChangeStep is the event the cascade is built for.
type ChangeStep struct {
	// Trigger selects the event:
	// - "change" (default): Attribute changed on the records in IDs
	// - "formula": the formula of derived attribute Attribute was created
	//   or edited; IDs must be empty
	// - "created": the single record in IDs was created in Owner
	Trigger string `yaml:"trigger,omitempty"`

	// Attribute is the changed source attribute, e.g. "collection:C4.a4",
	// or the edited derived attribute for the formula trigger.
	Attribute string `yaml:"attribute,omitempty"`

	// Owner is the collection or link type of a created record, e.g.
	// "collection:C2" (created trigger only).
	Owner string `yaml:"owner,omitempty"`

	// IDs are the changed document ids (collection attribute) or link
	// instance ids (link type attribute).
	IDs []string `yaml:"ids,omitempty"`
}

// Trigger constants for ChangeStep.Trigger.
const (
	TriggerChange  = "change"
	TriggerFormula = "formula"
	TriggerCreated = "created"
)

// Kind returns the trigger, defaulting to TriggerChange.
func (c ChangeStep) Kind() string {
	if c.Trigger == "" {
		return TriggerChange
	}
	return c.Trigger
}

// Ref parses the changed attribute reference.
func (c ChangeStep) Ref() (ir.AttributeRef, error) {
	return ir.ParseAttributeRef(c.Attribute)
}

// ExpectedTask is one node of the expected forest.
type ExpectedTask struct {
	Target     string         `yaml:"target"`
	IDs        []string       `yaml:"ids"`
	Dependents []ExpectedTask `yaml:"dependents,omitempty"`
}

// Assertion validates the forest or the build report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "task_present": a task for Target exists (with exactly IDs, if given)
	// - "task_absent": no task for Target exists
	// - "task_count": the forest has exactly Count tasks
	// - "task_order": Targets appear in this order in the flattened forest
	// - "cycle_broken": the build cut a cycle at Target
	// - "unresolvable_count": exactly Count edges were unresolvable
	Type string `yaml:"type"`

	// Target is an attribute ref string (used by task_present, task_absent,
	// cycle_broken).
	Target string `yaml:"target,omitempty"`

	// IDs are the expected record ids (used by task_present).
	IDs []string `yaml:"ids,omitempty"`

	// Count is the expected number (used by task_count, unresolvable_count).
	Count int `yaml:"count,omitempty"`

	// Targets is the expected order (used by task_order).
	Targets []string `yaml:"targets,omitempty"`
}

// Assertion type constants.
const (
	AssertTaskPresent       = "task_present"
	AssertTaskAbsent        = "task_absent"
	AssertTaskCount         = "task_count"
	AssertTaskOrder         = "task_order"
	AssertCycleBroken       = "cycle_broken"
	AssertUnresolvableCount = "unresolvable_count"
)

// LoadScenario reads and parses a scenario YAML file.
// The schema path is resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve schema path relative to base path BEFORE validation
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}

	if err := validateChange(s.Change); err != nil {
		return err
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	if s.MaxTasks < 0 {
		return fmt.Errorf("max_tasks must be non-negative")
	}

	for i, link := range s.Links {
		if link.ID == "" {
			return fmt.Errorf("links[%d]: id is required", i)
		}
		if link.LinkType == "" {
			return fmt.Errorf("links[%d]: link_type is required", i)
		}
		if len(link.Documents) != 2 {
			return fmt.Errorf("links[%d]: documents must name exactly two documents, got %d", i, len(link.Documents))
		}
	}

	if err := validateExpected("expect", s.Expect); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateChange checks the fields each trigger needs.
func validateChange(c ChangeStep) error {
	switch c.Kind() {
	case TriggerChange, TriggerFormula:
		if c.Attribute == "" {
			return fmt.Errorf("change.attribute is required for %s", c.Kind())
		}
		if _, err := c.Ref(); err != nil {
			return fmt.Errorf("change.attribute: %w", err)
		}
		if c.Owner != "" {
			return fmt.Errorf("change.owner is only valid for %s", TriggerCreated)
		}
		if c.Kind() == TriggerFormula && len(c.IDs) > 0 {
			return fmt.Errorf("change.ids must be empty for %s", TriggerFormula)
		}
	case TriggerCreated:
		if c.Owner == "" {
			return fmt.Errorf("change.owner is required for %s", TriggerCreated)
		}
		if _, _, err := ir.ParseOwner(c.Owner); err != nil {
			return fmt.Errorf("change.owner: %w", err)
		}
		if c.Attribute != "" {
			return fmt.Errorf("change.attribute must be empty for %s", TriggerCreated)
		}
		if len(c.IDs) != 1 {
			return fmt.Errorf("change.ids must name exactly one created record, got %d", len(c.IDs))
		}
	default:
		return fmt.Errorf("change.trigger: unknown trigger %q", c.Trigger)
	}
	return nil
}

// validateExpected checks every node of an expected forest.
func validateExpected(path string, tasks []ExpectedTask) error {
	for i, task := range tasks {
		field := fmt.Sprintf("%s[%d]", path, i)
		if _, err := ir.ParseAttributeRef(task.Target); err != nil {
			return fmt.Errorf("%s.target: %w", field, err)
		}
		if len(task.IDs) == 0 {
			return fmt.Errorf("%s.ids: a task always has at least one record", field)
		}
		if err := validateExpected(field+".dependents", task.Dependents); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTaskPresent, AssertTaskAbsent, AssertCycleBroken:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for %s", index, a.Type)
		}
		if _, err := ir.ParseAttributeRef(a.Target); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTaskCount, AssertUnresolvableCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTaskOrder:
		if len(a.Targets) == 0 {
			return fmt.Errorf("assertions[%d]: targets list is required for task_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
