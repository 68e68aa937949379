package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recalc/internal/compiler"
	"github.com/roach88/recalc/internal/ir"
	"github.com/roach88/recalc/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string // path to SQLite database
	Data     string // optional YAML file of documents and link instances
}

// DataFile is the YAML layout of the --data file.
//
//	documents:
//	  C1: [c1a, c1b]
//	links:
//	  - id: l1
//	    link_type: L12
//	    documents: [c1a, c2a]
type DataFile struct {
	Documents map[string][]string `yaml:"documents"`
	Links     []ir.LinkInstance   `yaml:"links"`
}

// ApplyResult summarizes what the database holds after apply.
type ApplyResult struct {
	Database string      `json:"database"`
	Stats    store.Stats `json:"stats"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <schema-dir>",
		Short: "Write a schema and its dependency edges to a database",
		Long: `Validate a CUE schema and persist its collections, link types and
dependency edges. Re-applying an edited schema replaces the edges of every
attribute it declares.

With --data, documents and link instances are written as well.

Example:
  recalc apply --db ./recalc.db ./schema
  recalc apply --db ./recalc.db --data ./data.yaml ./schema`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Data, "data", "", "YAML file of documents and link instances")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runApply(opts *ApplyOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions)

	loadResult, err := LoadSchema(schemaDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if errs := compiler.Validate(loadResult.Schema); len(errs) > 0 {
		return outputValidationErrors(formatter, errs, nil)
	}

	var data *DataFile
	if opts.Data != "" {
		data, err = LoadDataFile(opts.Data)
		if err != nil {
			return outputError(formatter, ErrCodeLoadFailed, err.Error(), nil)
		}
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputError(formatter, ErrCodeDatabase, fmt.Sprintf("opening database: %v", err), nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := st.ApplySchema(ctx, loadResult.Schema); err != nil {
		return outputError(formatter, ErrCodeDatabase, err.Error(), nil)
	}
	logger.Info("schema applied",
		"collections", len(loadResult.Schema.Collections),
		"link_types", len(loadResult.Schema.LinkTypes),
		"edges", len(loadResult.Schema.Edges()),
	)

	if data != nil {
		if err := writeData(ctx, st, data); err != nil {
			return outputError(formatter, ErrCodeDatabase, err.Error(), nil)
		}
		formatter.VerboseLog("Wrote data from %s", opts.Data)
	}

	stats, err := st.ReadStats(ctx)
	if err != nil {
		return outputError(formatter, ErrCodeDatabase, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(ApplyResult{Database: opts.Database, Stats: stats})
	}
	fmt.Fprintf(formatter.Writer, "✓ Applied schema to %s\n", opts.Database)
	fmt.Fprintf(formatter.Writer, "  %d collection(s), %d link type(s), %d edge(s)\n",
		stats.Collections, stats.LinkTypes, stats.Edges)
	fmt.Fprintf(formatter.Writer, "  %d document(s), %d link instance(s)\n",
		stats.Documents, stats.LinkInstances)
	return nil
}

// LoadDataFile parses a --data YAML file. Unknown fields are rejected;
// an empty file holds no data.
func LoadDataFile(path string) (*DataFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var data DataFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return &data, nil
}

// writeData writes documents, by sorted collection, then link instances.
func writeData(ctx context.Context, st *store.Store, data *DataFile) error {
	collections := make([]string, 0, len(data.Documents))
	for id := range data.Documents {
		collections = append(collections, id)
	}
	sort.Strings(collections)

	for _, collectionID := range collections {
		for _, docID := range data.Documents[collectionID] {
			if err := st.WriteDocument(ctx, ir.Document{ID: docID, CollectionID: collectionID}); err != nil {
				return err
			}
		}
	}
	for _, link := range data.Links {
		if err := st.WriteLinkInstance(ctx, link); err != nil {
			return err
		}
	}
	return nil
}
