package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/recalc/internal/ir"
)

// Package-level tracer and meter for cascade builds.
// Both are no-ops until the process installs a global provider.
var (
	tracer = otel.Tracer("recalc.engine")
	meter  = otel.Meter("recalc.engine")
)

// Metrics for cascade builds.
var (
	buildLatency      metric.Float64Histogram
	buildTotal        metric.Int64Counter
	tasksBuilt        metric.Int64Histogram
	unresolvableTotal metric.Int64Counter
	cyclesBroken      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"cascade_build_duration_seconds",
			metric.WithDescription("Duration of cascade builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"cascade_build_total",
			metric.WithDescription("Total number of cascade builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tasksBuilt, err = meter.Int64Histogram(
			"cascade_tasks",
			metric.WithDescription("Number of recompute tasks per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unresolvableTotal, err = meter.Int64Counter(
			"cascade_unresolvable_edges_total",
			metric.WithDescription("Edges resolved to the empty set because they could not be traversed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesBroken, err = meter.Int64Counter(
			"cascade_cycles_broken_total",
			metric.WithDescription("Edge groups skipped because their target was already on the path"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a finished build.
func recordBuildMetrics(ctx context.Context, duration time.Duration, r *Report) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("trigger", string(r.Trigger)),
		attribute.String("source_kind", string(r.SourceKind)),
		attribute.Bool("truncated", r.Truncated != nil),
	)

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	tasksBuilt.Record(ctx, int64(r.TaskCount()))

	if n := len(r.Unresolvable) + len(r.LookupFailures); n > 0 {
		unresolvableTotal.Add(ctx, int64(n))
	}
	if n := len(r.CyclesBroken); n > 0 {
		cyclesBroken.Add(ctx, int64(n))
	}
}

// startBuildSpan creates a span for one build.
func startBuildSpan(ctx context.Context, buildID string, trigger Trigger, kind ir.OwnerKind, edgeCount, changedCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(
			attribute.String("cascade.build_id", buildID),
			attribute.String("cascade.trigger", string(trigger)),
			attribute.String("cascade.source_kind", string(kind)),
			attribute.Int("cascade.edge_count", edgeCount),
			attribute.Int("cascade.changed_count", changedCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, r *Report) {
	span.SetAttributes(
		attribute.Int("cascade.task_count", r.TaskCount()),
		attribute.Int("cascade.unresolvable_count", len(r.Unresolvable)+len(r.LookupFailures)),
		attribute.Int("cascade.cycles_broken", len(r.CyclesBroken)),
		attribute.Bool("cascade.truncated", r.Truncated != nil),
	)
}
