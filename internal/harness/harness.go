package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/roach88/recalc/internal/compiler"
	"github.com/roach88/recalc/internal/engine"
	"github.com/roach88/recalc/internal/ir"
	"github.com/roach88/recalc/internal/store"
	"github.com/roach88/recalc/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a real store with a fixed build id.
type Harness struct {
	store   *store.Store
	builder *engine.Builder
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile, validate and apply the CUE schema
// 3. Write documents and link instances
// 4. Build the cascade for the change, formula or created-record event
// 5. Compare against expect and evaluate assertions
//
// The returned error covers setup problems only; a cascade that does not
// match the scenario is reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:  st,
		logger: logger,
		builder: engine.New(st, st,
			engine.WithLogger(logger),
			engine.WithCatalog(st),
			engine.WithBuildIDGenerator(testutil.NewFixedBuildIDGenerator(scenario.BuildID)),
			engine.WithMaxTasks(scenario.MaxTasks),
		),
	}

	ctx := context.Background()

	if err := h.applySchema(ctx, scenario.Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed relations: %w", err)
	}

	report, err := h.build(ctx, scenario.Change)
	if err != nil {
		return nil, fmt.Errorf("failed to build cascade: %w", err)
	}

	result := NewResult()
	result.Report = report
	if report.Tasks != nil {
		result.Tasks = report.Tasks
	}

	if scenario.Expect != nil {
		if err := compareForest(scenario.Expect, result.Tasks); err != nil {
			result.AddError(err.Error())
		}
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// build runs the builder entry point for the scenario's trigger.
func (h *Harness) build(ctx context.Context, change ChangeStep) (*engine.Report, error) {
	switch change.Kind() {
	case TriggerFormula:
		target, err := change.Ref()
		if err != nil {
			return nil, err
		}
		return h.builder.BuildForFormula(ctx, target)
	case TriggerCreated:
		kind, owner, err := ir.ParseOwner(change.Owner)
		if err != nil {
			return nil, err
		}
		return h.builder.BuildForCreatedRecord(ctx, kind, owner, change.IDs[0])
	default:
		source, err := change.Ref()
		if err != nil {
			return nil, err
		}
		return h.builder.BuildForAttribute(ctx, source, ir.NewRecordSet(change.IDs...))
	}
}

// applySchema compiles the CUE schema file, rejects invalid schemas, and
// persists collections, link types and dependency edges.
func (h *Harness) applySchema(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	schema, err := compiler.CompileBytes(src, path)
	if err != nil {
		return err
	}
	if errs := compiler.Validate(schema); len(errs) > 0 {
		if len(errs) > 1 {
			return fmt.Errorf("schema %s: %w (and %d more)", path, errs[0], len(errs)-1)
		}
		return fmt.Errorf("schema %s: %w", path, errs[0])
	}
	return h.store.ApplySchema(ctx, schema)
}

// seed writes the scenario's documents and link instances.
// Collections are written in sorted order so failures are reproducible.
func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	collections := make([]string, 0, len(scenario.Documents))
	for id := range scenario.Documents {
		collections = append(collections, id)
	}
	sort.Strings(collections)

	for _, collectionID := range collections {
		for _, docID := range scenario.Documents[collectionID] {
			doc := ir.Document{ID: docID, CollectionID: collectionID}
			if err := h.store.WriteDocument(ctx, doc); err != nil {
				return fmt.Errorf("document %s: %w", docID, err)
			}
		}
	}

	for i, link := range scenario.Links {
		li := ir.LinkInstance{
			ID:          link.ID,
			LinkTypeID:  link.LinkType,
			DocumentIDs: [2]string{link.Documents[0], link.Documents[1]},
		}
		if err := h.store.WriteLinkInstance(ctx, li); err != nil {
			return fmt.Errorf("links[%d] %s: %w", i, link.ID, err)
		}
	}

	h.logger.Debug("scenario seeded",
		"collections", len(collections),
		"links", len(scenario.Links),
	)
	return nil
}
