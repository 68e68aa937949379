package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/recalc/internal/engine"
	"github.com/roach88/recalc/internal/ir"
	"github.com/roach88/recalc/internal/testutil"
)

// The engine's tracer and meter delegate to the first global providers
// installed, so every test in the package shares one pair.
var (
	telemetryOnce sync.Once
	spanRecorder  *tracetest.SpanRecorder
	metricReader  *sdkmetric.ManualReader
)

func installTelemetry(t *testing.T) {
	t.Helper()
	telemetryOnce.Do(func() {
		spanRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))

		metricReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	})
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTelemetry_BuildSpan(t *testing.T) {
	installTelemetry(t)

	b := newBuilder(scenarioGraph(), engine.WithBuildIDGenerator(testutil.NewFixedBuildIDGenerator("span-build")))
	b.Build(context.Background(), ir.OwnerCollection,
		[]ir.DependencyEdge{ir.Edge(c2a2, c4a4, "L24")}, ir.NewRecordSet("d4"))

	var found bool
	for _, s := range spanRecorder.Ended() {
		if s.Name() != "Builder.Build" {
			continue
		}
		id, ok := spanAttr(s.Attributes(), "cascade.build_id")
		if !ok || id.AsString() != "span-build" {
			continue
		}
		found = true

		kind, ok := spanAttr(s.Attributes(), "cascade.source_kind")
		require.True(t, ok)
		assert.Equal(t, "collection", kind.AsString())

		tasks, ok := spanAttr(s.Attributes(), "cascade.task_count")
		require.True(t, ok)
		assert.Equal(t, int64(3), tasks.AsInt64())

		cycles, ok := spanAttr(s.Attributes(), "cascade.cycles_broken")
		require.True(t, ok)
		assert.Equal(t, int64(1), cycles.AsInt64())
	}
	assert.True(t, found, "no Builder.Build span with build id span-build")
}

func TestTelemetry_BuildMetrics(t *testing.T) {
	installTelemetry(t)

	b := newBuilder(scenarioGraph())
	b.Build(context.Background(), ir.OwnerCollection,
		[]ir.DependencyEdge{ir.Edge(c2a2, c4a4, "L24")}, ir.NewRecordSet("d4"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "recalc.engine" {
			continue
		}
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.GreaterOrEqual(t, sums["cascade_build_total"], int64(1))
	assert.GreaterOrEqual(t, sums["cascade_cycles_broken_total"], int64(1))
}
