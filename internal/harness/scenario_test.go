package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSchema writes a minimal CUE schema file for testing.
func createTestSchema(t *testing.T, dir string) string {
	t.Helper()
	schemaPath := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`collection: C: attribute: x: {}`), 0644))
	return schemaPath
}

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestSchema(t, dir)

	path := writeScenario(t, dir, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
schema: schema.cue
documents:
  C: [d1, d2]
links:
  - id: l1
    link_type: L
    documents: [d1, d2]
change:
  attribute: collection:C.x
  ids: [d1]
max_tasks: 10
build_id: build-1
assertions:
  - type: task_count
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), scenario.Schema)
	assert.Equal(t, []string{"d1", "d2"}, scenario.Documents["C"])
	require.Len(t, scenario.Links, 1)
	assert.Equal(t, LinkStep{ID: "l1", LinkType: "L", Documents: []string{"d1", "d2"}}, scenario.Links[0])
	assert.Equal(t, "collection:C.x", scenario.Change.Attribute)
	assert.Equal(t, []string{"d1"}, scenario.Change.IDs)
	assert.Equal(t, 10, scenario.MaxTasks)
	assert.Equal(t, "build-1", scenario.BuildID)
	assert.Nil(t, scenario.Expect)
	require.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_EmptyExpectIsKept(t *testing.T) {
	dir := t.TempDir()
	createTestSchema(t, dir)

	path := writeScenario(t, dir, "empty.yaml", `
name: empty_forest
description: "Nothing depends on x"
schema: schema.cue
change:
  attribute: collection:C.x
  ids: [d1]
expect: []
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.NotNil(t, scenario.Expect)
	assert.Empty(t, scenario.Expect)
}

func TestLoadScenario_WithBasePath(t *testing.T) {
	dir := t.TempDir()
	createTestSchema(t, dir)
	sub := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(sub, 0755))

	path := writeScenario(t, sub, "test.yaml", `
name: base_path
description: "Schema relative to the base path"
schema: schema.cue
change:
  attribute: collection:C.x
  ids: [d1]
expect: []
`)

	_, err := LoadScenario(path)
	require.Error(t, err, "schema is not next to the scenario")

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), scenario.Schema)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	createTestSchema(t, dir)

	path := writeScenario(t, dir, "typo.yaml", `
name: typo
description: "Misspelled assertions key"
schema: schema.cue
change:
  attribute: collection:C.x
  ids: [d1]
assertion:
  - type: task_count
    count: 0
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing name",
			body: `
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			body: `
name: n
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "description is required",
		},
		{
			name: "missing schema",
			body: `
name: n
description: "d"
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "schema is required",
		},
		{
			name: "schema not found",
			body: `
name: n
description: "d"
schema: nowhere.cue
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "schema file not found",
		},
		{
			name: "missing change attribute",
			body: `
name: n
description: "d"
schema: schema.cue
change: {ids: [d1]}
expect: []
`,
			wantErr: "change.attribute is required",
		},
		{
			name: "malformed change attribute",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "table:C.x", ids: [d1]}
expect: []
`,
			wantErr: "unknown owner kind",
		},
		{
			name: "unknown trigger",
			body: `
name: n
description: "d"
schema: schema.cue
change: {trigger: deleted, attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: `unknown trigger "deleted"`,
		},
		{
			name: "formula with ids",
			body: `
name: n
description: "d"
schema: schema.cue
change: {trigger: formula, attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "change.ids must be empty for formula",
		},
		{
			name: "created without owner",
			body: `
name: n
description: "d"
schema: schema.cue
change: {trigger: created, ids: [d1]}
expect: []
`,
			wantErr: "change.owner is required for created",
		},
		{
			name: "created with two records",
			body: `
name: n
description: "d"
schema: schema.cue
change: {trigger: created, owner: "collection:C", ids: [d1, d2]}
expect: []
`,
			wantErr: "exactly one created record",
		},
		{
			name: "created with attribute",
			body: `
name: n
description: "d"
schema: schema.cue
change: {trigger: created, owner: "collection:C", attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "change.attribute must be empty for created",
		},
		{
			name: "owner on change trigger",
			body: `
name: n
description: "d"
schema: schema.cue
change: {owner: "collection:C", attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "change.owner is only valid for created",
		},
		{
			name: "no expectations",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
`,
			wantErr: "expect or assertions is required",
		},
		{
			name: "negative max tasks",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
max_tasks: -1
`,
			wantErr: "max_tasks must be non-negative",
		},
		{
			name: "link with one document",
			body: `
name: n
description: "d"
schema: schema.cue
links:
  - {id: l1, link_type: L, documents: [d1]}
change: {attribute: "collection:C.x", ids: [d1]}
expect: []
`,
			wantErr: "links[0]: documents must name exactly two documents, got 1",
		},
		{
			name: "expected task without records",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
expect:
  - target: collection:C.y
    ids: [d1]
    dependents:
      - target: collection:C.z
        ids: []
`,
			wantErr: "expect[0].dependents[0].ids",
		},
		{
			name: "unknown assertion type",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
assertions:
  - type: trace_contains
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "task_present without target",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
assertions:
  - type: task_present
`,
			wantErr: "target is required for task_present",
		},
		{
			name: "task_order without targets",
			body: `
name: n
description: "d"
schema: schema.cue
change: {attribute: "collection:C.x", ids: [d1]}
assertions:
  - type: task_order
`,
			wantErr: "targets list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestSchema(t, dir)
			path := writeScenario(t, dir, "s.yaml", tt.body)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
