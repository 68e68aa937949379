package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/recalc/internal/ir"
)

// EdgeSource supplies dependency edges by source attribute.
// Implemented by *store.Store and testutil.Graph.
type EdgeSource interface {
	EdgesBySource(ctx context.Context, ref ir.AttributeRef) ([]ir.DependencyEdge, error)
}

// RelationResolver reads live relation data. It must reflect the state after
// the triggering change.
// Implemented by *store.Store and testutil.Graph.
type RelationResolver interface {
	// LinkInstancesFor returns the link instances of linkTypeID incident to
	// any of documentIDs.
	LinkInstancesFor(ctx context.Context, linkTypeID string, documentIDs ir.RecordSet) (ir.RecordSet, error)

	// DocumentsFor returns the endpoint documents of linkInstanceIDs that
	// belong to collectionID, or both endpoints when collectionID is "".
	DocumentsFor(ctx context.Context, linkTypeID, collectionID string, linkInstanceIDs ir.RecordSet) (ir.RecordSet, error)
}

// Catalog lists what a collection or link type owns. Builds started by a
// formula edit or a created record need it; change builds do not.
// Implemented by *store.Store and testutil.Graph.
type Catalog interface {
	// Records returns every document of a collection or every link
	// instance of a link type.
	Records(ctx context.Context, kind ir.OwnerKind, ownerID string) (ir.RecordSet, error)

	// DerivedAttributes returns the derived attributes of an owner in edge
	// insertion order.
	DerivedAttributes(ctx context.Context, kind ir.OwnerKind, ownerID string) ([]ir.AttributeRef, error)

	// EdgesVia returns every edge that traverses linkTypeID, in insertion order.
	EdgesVia(ctx context.Context, linkTypeID string) ([]ir.DependencyEdge, error)
}

// ErrNoCatalog is returned by entry points that need a Catalog when the
// Builder was created without WithCatalog.
var ErrNoCatalog = errors.New("builder has no catalog")

// Trigger names the event a build was started for.
type Trigger string

const (
	// TriggerChange: attribute values of some records changed.
	TriggerChange Trigger = "change"
	// TriggerFormula: a derived attribute's formula was created or edited.
	TriggerFormula Trigger = "formula"
	// TriggerCreated: a document or link instance was created.
	TriggerCreated Trigger = "created"
)

// Builder turns a change event into a forest of RecomputeTasks.
//
// Thread-safety model:
//   - A Builder is immutable after New and safe for concurrent use
//   - Each build owns its CycleGuard and TaskBudget; nothing is shared
//     between concurrent builds
//   - Collaborators must be safe for concurrent reads
type Builder struct {
	edges    EdgeSource
	resolver RelationResolver
	catalog  Catalog
	logger   *slog.Logger
	ids      BuildIDGenerator
	maxTasks int
}

// Option allows configuration of builder parameters.
type Option func(*Builder)

// WithLogger sets the logger used for build diagnostics.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithBuildIDGenerator sets the generator for build correlation ids.
// Default: UUIDv7Generator
func WithBuildIDGenerator(gen BuildIDGenerator) Option {
	return func(b *Builder) {
		b.ids = gen
	}
}

// WithCatalog sets the catalog used by BuildForFormula and
// BuildForCreatedRecord.
// Default: nil (those entry points return ErrNoCatalog)
func WithCatalog(c Catalog) Option {
	return func(b *Builder) {
		b.catalog = c
	}
}

// WithMaxTasks caps the number of tasks one build may materialize.
// Default: 0 (unlimited)
func WithMaxTasks(n int) Option {
	return func(b *Builder) {
		b.maxTasks = n
	}
}

// New creates a Builder reading edges from edges and relations from resolver.
func New(edges EdgeSource, resolver RelationResolver, opts ...Option) *Builder {
	b := &Builder{
		edges:    edges,
		resolver: resolver,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
	}

	// Apply options
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// CycleBreak records an edge group skipped because its target was already
// an ancestor on the current path.
type CycleBreak struct {
	Path   []ir.AttributeRef
	Target ir.AttributeRef
}

// String renders the cycle as "a -> b -> a".
func (c CycleBreak) String() string {
	parts := make([]string, 0, len(c.Path)+1)
	for _, r := range c.Path {
		parts = append(parts, r.String())
	}
	parts = append(parts, c.Target.String())
	return strings.Join(parts, " -> ")
}

// Report is the full outcome of one build: the forest plus everything the
// build recovered from along the way.
type Report struct {
	BuildID    string
	Trigger    Trigger
	SourceKind ir.OwnerKind
	Tasks      []*ir.RecomputeTask

	// Changed is the record set the build started from.
	Changed ir.RecordSet

	Unresolvable   []*UnresolvableEdgeError
	LookupFailures []*EdgeLookupError
	CyclesBroken   []CycleBreak

	// Truncated is set when the task budget ran out.
	Truncated *BudgetExceededError
}

// TaskCount returns the number of tasks in the forest.
func (r *Report) TaskCount() int {
	return ir.CountTasks(r.Tasks)
}

// Warnings returns every recovered condition as an error, in the order the
// build met them per category.
func (r *Report) Warnings() []error {
	var out []error
	for _, e := range r.Unresolvable {
		out = append(out, e)
	}
	for _, e := range r.LookupFailures {
		out = append(out, e)
	}
	if r.Truncated != nil {
		out = append(out, r.Truncated)
	}
	return out
}

// BuildFromCollectionChange builds the cascade for a change to documents.
// edges are the edges whose source is the changed collection attribute.
func (b *Builder) BuildFromCollectionChange(ctx context.Context, edges []ir.DependencyEdge, changedDocumentIDs ir.RecordSet) []*ir.RecomputeTask {
	return b.Build(ctx, ir.OwnerCollection, edges, changedDocumentIDs).Tasks
}

// BuildFromLinkTypeChange builds the cascade for a change to link instances.
// edges are the edges whose source is the changed link type attribute.
func (b *Builder) BuildFromLinkTypeChange(ctx context.Context, edges []ir.DependencyEdge, changedLinkInstanceIDs ir.RecordSet) []*ir.RecomputeTask {
	return b.Build(ctx, ir.OwnerLinkType, edges, changedLinkInstanceIDs).Tasks
}

// Build runs one cascade build. kind is the record space of changed: document
// ids for ir.OwnerCollection, link instance ids for ir.OwnerLinkType.
//
// Build never fails. Problems with individual edges are recorded in the
// report and logged at warn level.
func (b *Builder) Build(ctx context.Context, kind ir.OwnerKind, edges []ir.DependencyEdge, changed ir.RecordSet) *Report {
	return b.run(ctx, TriggerChange, kind, len(edges), changed, func(ctx context.Context, bd *build) []*ir.RecomputeTask {
		return bd.expand(ctx, kind, edges, changed)
	})
}

// BuildForAttribute loads the edges reading source and builds its cascade.
// Only the initial edge lookup can fail; everything below it is recovered
// and reported like in Build.
func (b *Builder) BuildForAttribute(ctx context.Context, source ir.AttributeRef, changed ir.RecordSet) (*Report, error) {
	if !source.Kind.Valid() {
		return nil, fmt.Errorf("build for %s: unknown owner kind %q", source, source.Kind)
	}
	edges, err := b.edges.EdgesBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("build for %s: %w", source, err)
	}
	return b.Build(ctx, source.Kind, edges, changed), nil
}

// BuildForFormula builds the cascade for a derived attribute whose formula
// was created or edited. The root task recomputes target over every record
// of its owner; its dependents are built as for a change to target.
//
// An owner without records yields an empty forest.
func (b *Builder) BuildForFormula(ctx context.Context, target ir.AttributeRef) (*Report, error) {
	if !target.Kind.Valid() {
		return nil, fmt.Errorf("build for formula %s: unknown owner kind %q", target, target.Kind)
	}
	if b.catalog == nil {
		return nil, fmt.Errorf("build for formula %s: %w", target, ErrNoCatalog)
	}
	all, err := b.catalog.Records(ctx, target.Kind, target.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("build for formula %s: %w", target, err)
	}

	return b.run(ctx, TriggerFormula, target.Kind, 0, all, func(ctx context.Context, bd *build) []*ir.RecomputeTask {
		task := bd.root(ctx, target, func() ir.RecordSet { return all })
		if task == nil {
			return nil
		}
		return []*ir.RecomputeTask{task}
	}), nil
}

// BuildForCreatedRecord builds the cascade for a newly created document
// (kind ir.OwnerCollection) or link instance (kind ir.OwnerLinkType).
//
// A created record computes every derived attribute of its owner. A created
// link instance also recomputes the collection attributes read through its
// link type, for its endpoint documents.
//
// A root whose target an earlier root already recomputed for the same
// record is skipped.
func (b *Builder) BuildForCreatedRecord(ctx context.Context, kind ir.OwnerKind, ownerID, recordID string) (*Report, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("build for created %s: unknown owner kind %q", recordID, kind)
	}
	if b.catalog == nil {
		return nil, fmt.Errorf("build for created %s: %w", recordID, ErrNoCatalog)
	}
	created := ir.NewRecordSet(recordID)

	targets, err := b.catalog.DerivedAttributes(ctx, kind, ownerID)
	if err != nil {
		return nil, fmt.Errorf("build for created %s: %w", recordID, err)
	}
	groups := make([]edgeGroup, 0, len(targets))
	for _, t := range targets {
		groups = append(groups, edgeGroup{target: t})
	}
	if kind == ir.OwnerLinkType {
		edges, err := b.catalog.EdgesVia(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("build for created %s: %w", recordID, err)
		}
		for _, g := range groupByTarget(edges) {
			if g.target.Kind == kind && g.target.OwnerID == ownerID {
				continue
			}
			groups = append(groups, g)
		}
	}

	return b.run(ctx, TriggerCreated, kind, len(groups), created, func(ctx context.Context, bd *build) []*ir.RecomputeTask {
		var tasks []*ir.RecomputeTask
		for _, g := range groups {
			if bd.report.Truncated != nil {
				break
			}
			if covered(tasks, g.target, recordID) {
				continue
			}
			task := bd.root(ctx, g.target, func() ir.RecordSet {
				return bd.createdRecords(ctx, ownerID, g, created)
			})
			if task != nil {
				tasks = append(tasks, task)
			}
		}
		return tasks
	}), nil
}

// run wraps one build with its id, span, metrics and summary log.
func (b *Builder) run(ctx context.Context, trigger Trigger, kind ir.OwnerKind, edgeCount int, changed ir.RecordSet, fn func(context.Context, *build) []*ir.RecomputeTask) *Report {
	buildID := b.ids.Generate()
	ctx, span := startBuildSpan(ctx, buildID, trigger, kind, edgeCount, changed.Len())
	defer span.End()
	start := time.Now()

	bd := &build{
		b:      b,
		logger: b.logger.With("build_id", buildID),
		guard:  NewCycleGuard(),
		budget: NewTaskBudget(b.maxTasks),
		report: &Report{BuildID: buildID, Trigger: trigger, SourceKind: kind, Changed: changed},
	}
	bd.report.Tasks = fn(ctx, bd)

	setBuildSpanResult(span, bd.report)
	recordBuildMetrics(ctx, time.Since(start), bd.report)
	bd.logger.Debug("cascade built",
		"trigger", string(trigger),
		"source_kind", string(kind),
		"changed", changed.Len(),
		"tasks", bd.report.TaskCount(),
		"unresolvable", len(bd.report.Unresolvable)+len(bd.report.LookupFailures),
		"cycles_broken", len(bd.report.CyclesBroken),
	)

	return bd.report
}

// covered reports whether forest already recomputes target for recordID.
func covered(forest []*ir.RecomputeTask, target ir.AttributeRef, recordID string) bool {
	found := false
	ir.Walk(forest, func(t *ir.RecomputeTask, _ int) bool {
		if t.Target == target && t.RecordIDs.Contains(recordID) {
			found = true
		}
		return !found
	})
	return found
}

// build is the call-local state of one Build.
type build struct {
	b      *Builder
	logger *slog.Logger
	guard  *CycleGuard
	budget *TaskBudget
	report *Report
}

// edgeGroup is the set of distinct edges sharing a target.
type edgeGroup struct {
	target ir.AttributeRef
	edges  []ir.DependencyEdge
}

// groupByTarget groups edges by target in first-seen order, dropping
// duplicate edges.
func groupByTarget(edges []ir.DependencyEdge) []edgeGroup {
	index := make(map[ir.AttributeRef]int)
	seen := make(map[ir.DependencyEdge]bool)
	var groups []edgeGroup
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true

		i, ok := index[e.Target]
		if !ok {
			i = len(groups)
			index[e.Target] = i
			groups = append(groups, edgeGroup{target: e.Target})
		}
		groups[i].edges = append(groups[i].edges, e)
	}
	return groups
}

// expand materializes one level of the cascade and recurses into each task.
func (bd *build) expand(ctx context.Context, kind ir.OwnerKind, edges []ir.DependencyEdge, changed ir.RecordSet) []*ir.RecomputeTask {
	if changed.IsEmpty() || len(edges) == 0 {
		return nil
	}

	var tasks []*ir.RecomputeTask
	for _, g := range groupByTarget(edges) {
		if bd.report.Truncated != nil {
			break
		}
		task := bd.root(ctx, g.target, func() ir.RecordSet {
			var ids ir.RecordSet
			for _, e := range g.edges {
				ids = ids.Union(bd.resolve(ctx, kind, e, changed))
			}
			return ids
		})
		if task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// root materializes one task for target and expands its dependents.
//
// The cycle guard is entered before records are resolved, so a target that
// is already on the path costs no resolver calls. Returns nil when target
// closes a cycle, resolves to no records, or the task budget is spent.
func (bd *build) root(ctx context.Context, target ir.AttributeRef, records func() ir.RecordSet) *ir.RecomputeTask {
	if !bd.guard.Enter(target) {
		bd.cycleBroken(target)
		return nil
	}
	defer bd.guard.Leave()

	ids := records()
	if ids.IsEmpty() {
		return nil
	}

	if err := bd.budget.Take(); err != nil {
		var be *BudgetExceededError
		if errors.As(err, &be) {
			bd.report.Truncated = be
		}
		bd.logger.Warn("cascade truncated", "limit", bd.budget.Limit(), "target", target.String())
		return nil
	}

	task := &ir.RecomputeTask{Target: target, RecordIDs: ids}
	task.Dependents = bd.dependents(ctx, task)
	return task
}

// createdRecords returns the records of g.target affected by a record
// created in ownerID: the record itself for attributes of its own owner,
// the endpoints in the target collection for attributes read through a new
// link instance.
func (bd *build) createdRecords(ctx context.Context, ownerID string, g edgeGroup, created ir.RecordSet) ir.RecordSet {
	if g.target.Kind == bd.report.SourceKind && g.target.OwnerID == ownerID {
		return created
	}
	if g.target.Kind != ir.OwnerCollection || len(g.edges) == 0 {
		return ir.RecordSet{}
	}
	e := g.edges[0]
	ids, err := bd.b.resolver.DocumentsFor(ctx, e.Via, g.target.OwnerID, created)
	if err != nil {
		ue := &UnresolvableEdgeError{Edge: e, Err: err}
		bd.report.Unresolvable = append(bd.report.Unresolvable, ue)
		bd.logger.Warn("unresolvable edge",
			"target", e.Target.String(),
			"source", e.Source.String(),
			"via", e.Via,
			"error", err,
		)
		return ir.RecordSet{}
	}
	return ids
}

// dependents looks up the edges reading task.Target and expands them with
// the task's records as the changed set.
func (bd *build) dependents(ctx context.Context, task *ir.RecomputeTask) []*ir.RecomputeTask {
	next, err := bd.b.edges.EdgesBySource(ctx, task.Target)
	if err != nil {
		le := &EdgeLookupError{Source: task.Target, Err: err}
		bd.report.LookupFailures = append(bd.report.LookupFailures, le)
		bd.logger.Warn("edge lookup failed", "source", task.Target.String(), "error", err)
		return nil
	}
	return bd.expand(ctx, task.Target.Kind, next, task.RecordIDs)
}

// resolve maps changed records through one edge, recovering from failures.
func (bd *build) resolve(ctx context.Context, kind ir.OwnerKind, e ir.DependencyEdge, changed ir.RecordSet) ir.RecordSet {
	ids, err := resolveEdge(ctx, bd.b.resolver, kind, e, changed)
	if err != nil {
		ue := &UnresolvableEdgeError{Edge: e, Err: err}
		bd.report.Unresolvable = append(bd.report.Unresolvable, ue)
		bd.logger.Warn("unresolvable edge",
			"target", e.Target.String(),
			"source", e.Source.String(),
			"via", e.Via,
			"error", err,
		)
		return ir.RecordSet{}
	}
	return ids
}

func (bd *build) cycleBroken(target ir.AttributeRef) {
	cb := CycleBreak{Path: bd.guard.Path(), Target: target}
	bd.report.CyclesBroken = append(bd.report.CyclesBroken, cb)
	bd.logger.Debug("cycle broken", "cycle", cb.String())
}
