package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recalc/internal/ir"
	"github.com/roach88/recalc/internal/store"
)

func TestApplySchemaAndData(t *testing.T) {
	schemaDir := writeSchemaDir(t, ordersSchema)
	dataFile := writeFile(t, t.TempDir(), "data.yaml", ordersData)
	dbPath := filepath.Join(t.TempDir(), "recalc.db")

	output, err := execute(NewApplyCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--data", dataFile, schemaDir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Applied schema to "+dbPath)
	assert.Contains(t, output, "5 collection(s), 4 link type(s), 6 edge(s)")
	assert.Contains(t, output, "5 document(s), 4 link instance(s)")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	edges, err := st.EdgesBySource(ctx, ir.CollectionAttr("C4", "a4"))
	require.NoError(t, err)
	assert.Equal(t, []ir.DependencyEdge{
		ir.Edge(ir.CollectionAttr("C2", "a2"), ir.CollectionAttr("C4", "a4"), "L24"),
	}, edges)

	// k2 was given as [d4, c2b]; the store orders the ends by link type.
	docs, err := st.DocumentsFor(ctx, "L24", "C2", ir.NewRecordSet("k2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c2b"}, docs.IDs())
}

func TestApplyIsRepeatable(t *testing.T) {
	schemaDir := writeSchemaDir(t, ordersSchema)
	dataFile := writeFile(t, t.TempDir(), "data.yaml", ordersData)
	dbPath := filepath.Join(t.TempDir(), "recalc.db")

	for i := 0; i < 2; i++ {
		_, err := execute(NewApplyCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "--data", dataFile, schemaDir)
		require.NoError(t, err)
	}

	output, err := execute(NewApplyCommand(&RootOptions{Format: "json"}), "--db", dbPath, schemaDir)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, resp.Data.Stats.Edges)
	assert.Equal(t, 5, resp.Data.Stats.Documents)
	assert.Equal(t, 4, resp.Data.Stats.LinkInstances)
}

func TestApplyRejectsInvalidSchema(t *testing.T) {
	schemaDir := writeSchemaDir(t, `
package schema

collection: C1: attribute: a1: from: [{collection: "C2", attribute: "a2"}]
collection: C2: attribute: a2: {}
`)
	dbPath := filepath.Join(t.TempDir(), "recalc.db")

	output, err := execute(NewApplyCommand(&RootOptions{Format: "text"}), "--db", dbPath, schemaDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ Validation failed")
	assert.NoFileExists(t, dbPath)
}

func TestApplyRejectsBadData(t *testing.T) {
	schemaDir := writeSchemaDir(t, ordersSchema)
	dbPath := filepath.Join(t.TempDir(), "recalc.db")

	t.Run("unknown field", func(t *testing.T) {
		dataFile := writeFile(t, t.TempDir(), "data.yaml", "docs:\n  C1: [c1a]\n")
		output, err := execute(NewApplyCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "--data", dataFile, schemaDir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, output, ErrCodeLoadFailed)
	})

	t.Run("link across wrong collections", func(t *testing.T) {
		dataFile := writeFile(t, t.TempDir(), "data.yaml", `
documents:
  C1: [c1a]
  C4: [d4]
links:
  - id: bad
    link_type: L24
    documents: [c1a, d4]
`)
		output, err := execute(NewApplyCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "--data", dataFile, schemaDir)
		require.Error(t, err)
		assert.Contains(t, output, ErrCodeDatabase)
		assert.Contains(t, output, "do not match link type ends")
	})
}

func TestApplyRequiresDB(t *testing.T) {
	_, err := execute(NewApplyCommand(&RootOptions{Format: "text"}), writeSchemaDir(t, ordersSchema))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestLoadDataFile(t *testing.T) {
	dir := t.TempDir()

	data, err := LoadDataFile(writeFile(t, dir, "data.yaml", ordersData))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1a", "c1b"}, data.Documents["C1"])
	require.Len(t, data.Links, 4)
	assert.Equal(t, ir.LinkInstance{ID: "k2", LinkTypeID: "L24", DocumentIDs: [2]string{"d4", "c2b"}}, data.Links[1])

	empty, err := LoadDataFile(writeFile(t, dir, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, empty.Documents)

	_, err = LoadDataFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadDataFile(writeFile(t, dir, "three.yaml", "links:\n  - id: x\n    link_type: L\n    documents: [a, b, c]\n"))
	assert.Error(t, err)
}
