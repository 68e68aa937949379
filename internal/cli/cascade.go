package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/recalc/internal/engine"
	"github.com/roach88/recalc/internal/ir"
	"github.com/roach88/recalc/internal/store"
)

// CascadeOptions holds flags for the cascade command.
type CascadeOptions struct {
	*RootOptions
	Database   string   // path to SQLite database
	Collection string   // changed collection
	LinkType   string   // changed link type
	Attribute  string   // changed attribute, or the edited formula's attribute
	IDs        []string // changed document or link instance ids
	Formula    bool     // the formula of Attribute was created or edited
	Created    string   // id of a created document or link instance
	MaxTasks   int      // task budget, 0 for unlimited

	// BuildIDGenerator overrides the build id source (tests use fixed ids).
	BuildIDGenerator engine.BuildIDGenerator
}

// CascadeResult is the JSON payload of the cascade command.
type CascadeResult struct {
	Trigger      engine.Trigger      `json:"trigger"`
	Source       string              `json:"source"`
	Changed      ir.RecordSet        `json:"changed"`
	Tasks        []*ir.RecomputeTask `json:"tasks"`
	TaskCount    int                 `json:"task_count"`
	CyclesBroken []string            `json:"cycles_broken,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// NewCascadeCommand creates the cascade command.
func NewCascadeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CascadeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cascade",
		Short: "Build the recompute tasks for a change",
		Long: `Build the cascade of recompute tasks triggered by a change in the
documents of a collection (--collection) or the link instances of a link
type (--link-type).

Three kinds of change start a cascade:
  value     --attribute changed for the records in --ids
  formula   --formula: the formula of --attribute was created or edited,
            so it is recomputed for every record of its owner
  created   --created ID: a new document or link instance computes its
            derived attributes, and a new link updates the collection
            attributes read through it

Each task names a derived attribute and the records to recompute. A task's
dependents must run after it.

Example:
  recalc cascade --db ./recalc.db --collection C4 --attribute a4 --ids d4
  recalc cascade --db ./recalc.db --link-type L12 --attribute w --ids l1,l2 --format json
  recalc cascade --db ./recalc.db --collection C2 --attribute a2 --formula
  recalc cascade --db ./recalc.db --link-type L24 --created k3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCascade(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection whose documents changed")
	cmd.Flags().StringVar(&opts.LinkType, "link-type", "", "link type whose link instances changed")
	cmd.Flags().StringVar(&opts.Attribute, "attribute", "", "changed attribute (required unless --created)")
	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "changed record ids, comma separated")
	cmd.Flags().BoolVar(&opts.Formula, "formula", false, "recompute --attribute for every record after a formula edit")
	cmd.Flags().StringVar(&opts.Created, "created", "", "id of a newly created document or link instance")
	cmd.Flags().IntVar(&opts.MaxTasks, "max-tasks", 0, "stop building after this many tasks (0 = unlimited)")
	_ = cmd.MarkFlagRequired("db")
	cmd.MarkFlagsMutuallyExclusive("collection", "link-type")
	cmd.MarkFlagsOneRequired("collection", "link-type")
	cmd.MarkFlagsMutuallyExclusive("formula", "created")
	cmd.MarkFlagsMutuallyExclusive("formula", "ids")
	cmd.MarkFlagsMutuallyExclusive("created", "attribute")
	cmd.MarkFlagsMutuallyExclusive("created", "ids")

	return cmd
}

// trigger returns the kind of change named by the flags.
func (o *CascadeOptions) trigger() engine.Trigger {
	switch {
	case o.Created != "":
		return engine.TriggerCreated
	case o.Formula:
		return engine.TriggerFormula
	default:
		return engine.TriggerChange
	}
}

// owner returns the owner kind and id named by --collection or --link-type.
func (o *CascadeOptions) owner() (ir.OwnerKind, string) {
	if o.LinkType != "" {
		return ir.OwnerLinkType, o.LinkType
	}
	return ir.OwnerCollection, o.Collection
}

// sourceRef returns the changed attribute named by the flags.
func (o *CascadeOptions) sourceRef() ir.AttributeRef {
	if o.LinkType != "" {
		return ir.LinkTypeAttr(o.LinkType, o.Attribute)
	}
	return ir.CollectionAttr(o.Collection, o.Attribute)
}

// validate checks the flag combinations cobra's flag groups cannot express.
func (o *CascadeOptions) validate() error {
	if o.MaxTasks < 0 {
		return fmt.Errorf("--max-tasks must be non-negative")
	}
	if o.Created == "" && o.Attribute == "" {
		return fmt.Errorf("--attribute is required unless --created is set")
	}
	return nil
}

// checkSchema rejects flags naming owners or attributes the stored schema
// does not declare.
func (o *CascadeOptions) checkSchema(schema *ir.Schema) error {
	switch o.trigger() {
	case engine.TriggerCreated:
		kind, id := o.owner()
		if kind == ir.OwnerLinkType {
			if _, ok := schema.LinkType(id); !ok {
				return fmt.Errorf("unknown link type %s", id)
			}
			return nil
		}
		if _, ok := schema.Collection(id); !ok {
			return fmt.Errorf("unknown collection %s", id)
		}
	case engine.TriggerFormula:
		source := o.sourceRef()
		if !slices.Contains(schema.DerivedTargets(), source) {
			if !schema.HasAttribute(source) {
				return fmt.Errorf("unknown attribute %s", source)
			}
			return fmt.Errorf("attribute %s has no formula", source)
		}
	default:
		if source := o.sourceRef(); !schema.HasAttribute(source) {
			return fmt.Errorf("unknown attribute %s", source)
		}
	}
	return nil
}

func runCascade(opts *CascadeOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions)

	if err := opts.validate(); err != nil {
		return outputError(formatter, ErrCodeInvalidArgs, err.Error(), nil)
	}

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

	schema, err := st.ReadSchema(ctx)
	if err != nil {
		return outputError(formatter, ErrCodeDatabase, err.Error(), nil)
	}
	if err := opts.checkSchema(schema); err != nil {
		return outputError(formatter, ErrCodeInvalidArgs, err.Error(), nil)
	}

	builderOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxTasks(opts.MaxTasks),
		engine.WithCatalog(st),
	}
	if opts.BuildIDGenerator != nil {
		builderOpts = append(builderOpts, engine.WithBuildIDGenerator(opts.BuildIDGenerator))
	}
	builder := engine.New(st, st, builderOpts...)

	var (
		report *engine.Report
		source string
	)
	switch opts.trigger() {
	case engine.TriggerCreated:
		kind, id := opts.owner()
		source = fmt.Sprintf("%s:%s", kind, id)
		report, err = builder.BuildForCreatedRecord(ctx, kind, id, opts.Created)
	case engine.TriggerFormula:
		source = opts.sourceRef().String()
		report, err = builder.BuildForFormula(ctx, opts.sourceRef())
	default:
		source = opts.sourceRef().String()
		report, err = builder.BuildForAttribute(ctx, opts.sourceRef(), ir.NewRecordSet(opts.IDs...))
	}
	if err != nil {
		return outputError(formatter, ErrCodeDatabase, err.Error(), nil)
	}

	result := newCascadeResult(source, report)
	if formatter.Format == "json" {
		return formatter.SuccessWithBuild(result, report.BuildID)
	}
	return outputCascadeText(formatter, result, report.BuildID)
}

func newCascadeResult(source string, report *engine.Report) CascadeResult {
	result := CascadeResult{
		Trigger:   report.Trigger,
		Source:    source,
		Changed:   report.Changed,
		Tasks:     report.Tasks,
		TaskCount: report.TaskCount(),
	}
	if result.Tasks == nil {
		result.Tasks = []*ir.RecomputeTask{}
	}
	for _, cb := range report.CyclesBroken {
		result.CyclesBroken = append(result.CyclesBroken, cb.String())
	}
	for _, w := range report.Warnings() {
		result.Warnings = append(result.Warnings, w.Error())
	}
	return result
}

// outputCascadeText prints the forest as an indented tree.
func outputCascadeText(formatter *OutputFormatter, result CascadeResult, buildID string) error {
	w := formatter.Writer

	switch result.Trigger {
	case engine.TriggerFormula, engine.TriggerCreated:
		fmt.Fprintf(w, "Cascade for %s %s %s\n", result.Trigger, result.Source, result.Changed)
	default:
		fmt.Fprintf(w, "Cascade for %s %s\n", result.Source, result.Changed)
	}
	formatter.VerboseLog("Build: %s", buildID)
	fmt.Fprintln(w)

	if result.TaskCount == 0 {
		fmt.Fprintln(w, "No recomputation needed.")
	} else {
		fmt.Fprint(w, ir.FormatForest(result.Tasks))
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%d task(s)\n", result.TaskCount)
	}

	for _, c := range result.CyclesBroken {
		fmt.Fprintf(w, "⚠ cycle cut: %s\n", c)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", msg)
	}
	return nil
}
