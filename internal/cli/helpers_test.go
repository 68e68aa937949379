package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// ordersSchema: items (C4) feed orders (C2), which feed customers (C1).
const ordersSchema = `
package schema

collection: C1: {
	name: "Customers"
	attribute: a1: from: [
		{collection: "C2", attribute: "a2", via: "L12"},
		{collection: "C3", attribute: "a3", via: "L13"},
	]
}
collection: C2: {
	name: "Orders"
	attribute: a2: from: [
		{collection: "C4", attribute: "a4", via: "L24"},
		{collection: "C5", attribute: "a5", via: "L25"},
	]
	attribute: a3: from: [
		{collection: "C2", attribute: "a2"},
		{collection: "C2", attribute: "a3"},
	]
}
collection: C3: attribute: a3: {}
collection: C4: {
	name: "Items"
	attribute: a4: {}
}
collection: C5: attribute: a5: {}

link_type: L12: collections: ["C1", "C2"]
link_type: L13: collections: ["C1", "C3"]
link_type: L24: collections: ["C2", "C4"]
link_type: L25: collections: ["C2", "C5"]
`

// ordersData seeds the documents and links of the worked example.
const ordersData = `
documents:
  C1: [c1a, c1b]
  C2: [c2a, c2b]
  C4: [d4]
links:
  - id: k1
    link_type: L24
    documents: [c2a, d4]
  - id: k2
    link_type: L24
    documents: [d4, c2b]
  - id: l1
    link_type: L12
    documents: [c1a, c2a]
  - id: l2
    link_type: L12
    documents: [c1b, c2b]
`

// writeSchemaDir writes src as schema.cue in a fresh directory.
func writeSchemaDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(src), 0644))
	return dir
}

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
