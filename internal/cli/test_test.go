package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

// writeFailingScenario writes a scenario whose expectation does not hold.
func writeFailingScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "schema.cue", `
collection: C: {
	attribute: x: {}
	attribute: y: from: [{collection: "C", attribute: "x"}]
}
`)
	return writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "expects a task that is never built"
schema: schema.cue
documents:
  C: [d1]
change:
  attribute: collection:C.x
  ids: [d1]
assertions:
  - type: task_present
    target: collection:C.x
`)
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestTestCommandEmptyDir(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommandPasses(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ cycle")
	assert.Contains(t, output, "✓ link_change")
	assert.Contains(t, output, "✓ worked_example")
	assert.Contains(t, output, "✓ formula_edit")
	assert.Contains(t, output, "✓ created_document")
	assert.Contains(t, output, "✓ created_link")
	assert.Contains(t, output, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandGoldenMatch(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden-dir", harnessGolden)
	require.NoError(t, err)
	assert.Contains(t, output, "6 passed, 0 failed")
}

func TestTestCommandGoldenUpdateAndMismatch(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")
	scenario := filepath.Join(harnessScenarios, "cycle.yaml")

	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}),
		scenario, "--golden-dir", goldenDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ cycle (golden updated)")

	written, err := os.ReadFile(filepath.Join(goldenDir, "cycle.golden"))
	require.NoError(t, err)
	checkedIn, err := os.ReadFile(filepath.Join(harnessGolden, "cycle.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(checkedIn), string(written))

	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "cycle.golden"), []byte("{}"), 0644))
	output, err = execute(NewTestCommand(&RootOptions{Format: "text"}), scenario, "--golden-dir", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "snapshot does not match golden file")
}

func TestTestCommandUpdateRequiresGoldenDir(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios, "--update")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--update requires --golden-dir")
}

func TestTestCommandFilter(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios, "--filter", "link_*")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ link_change")
	assert.NotContains(t, output, "worked_example")
	assert.Contains(t, output, "1 passed, 0 failed, 1 total")

	_, err = execute(NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandFailure(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}), writeFailingScenario(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ wrong")
	assert.Contains(t, output, "Assertion failed: task_present")
	assert.Contains(t, output, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	output, err := execute(NewTestCommand(&RootOptions{Format: "json"}),
		filepath.Join(harnessScenarios, "worked_example.yaml"), writeFailingScenario(t))
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 2, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "worked_example", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", "name: broken\n")

	output, err := execute(NewTestCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, output, "✗ broken.yaml")
	assert.Contains(t, output, "failed to load scenario")
}
