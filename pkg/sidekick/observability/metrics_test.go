package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a reader to collect from.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue totals the datapoints of an int64 sum metric.
func sumValue(m *metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}

func TestRecordNodeExecution(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	m.RecordNodeExecution(ctx, "worker", 50*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "worker", 30*time.Millisecond, errors.New("boom"))

	rm := collectMetrics(t, reader)

	executions := findMetric(rm, "sidekick.node.executions")
	require.NotNil(t, executions)
	assert.Equal(t, int64(2), sumValue(executions))

	nodeErrors := findMetric(rm, "sidekick.node.errors")
	require.NotNil(t, nodeErrors)
	assert.Equal(t, int64(1), sumValue(nodeErrors))

	latency := findMetric(rm, "sidekick.node.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
}

func TestRecordSuperstep(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSuperstep(ctx, true, 200*time.Millisecond)
	m.RecordSuperstep(ctx, false, 90*time.Millisecond)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "sidekick.superstep.runs")
	require.NotNil(t, runs)
	assert.Equal(t, int64(2), sumValue(runs))

	latency := findMetric(rm, "sidekick.superstep.latency_ms")
	require.NotNil(t, latency)
}

func TestRecordLLMCall(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLLMCall(ctx, "openai", "gpt-4o-mini", 800*time.Millisecond, 120, 40, nil)

	rm := collectMetrics(t, reader)

	calls := findMetric(rm, "sidekick.llm.calls")
	require.NotNil(t, calls)
	assert.Equal(t, int64(1), sumValue(calls))

	tokens := findMetric(rm, "sidekick.llm.tokens")
	require.NotNil(t, tokens)
	assert.Equal(t, int64(160), sumValue(tokens))

	// Zero token counts are not recorded.
	m.RecordLLMCall(ctx, "mock", "mock", time.Millisecond, 0, 0, nil)
	rm = collectMetrics(t, reader)
	tokens = findMetric(rm, "sidekick.llm.tokens")
	require.NotNil(t, tokens)
	assert.Equal(t, int64(160), sumValue(tokens))
}

func TestRecordToolExecution(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordToolExecution(ctx, "web_search", 60*time.Millisecond, false)
	m.RecordToolExecution(ctx, "web_search", 10*time.Millisecond, true)

	rm := collectMetrics(t, reader)

	calls := findMetric(rm, "sidekick.tool.executions")
	require.NotNil(t, calls)
	assert.Equal(t, int64(2), sumValue(calls))
}

func TestRecordEvaluation(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEvaluation(ctx, false, false)
	m.RecordEvaluation(ctx, true, false)

	rm := collectMetrics(t, reader)

	evals := findMetric(rm, "sidekick.evaluations")
	require.NotNil(t, evals)
	assert.Equal(t, int64(2), sumValue(evals))
}

func TestRecordCheckpoint(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordCheckpoint(context.Background(), "worker", 4096)

	rm := collectMetrics(t, reader)

	size := findMetric(rm, "sidekick.checkpoint.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, int64(4096), hist.DataPoints[0].Sum)
}
