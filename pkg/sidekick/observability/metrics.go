package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records sidekick metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordSuperstep records a completed superstep.
	RecordSuperstep(ctx context.Context, success bool, duration time.Duration)

	// RecordLLMCall records a model call with token counts.
	RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, promptTokens, completionTokens int, err error)

	// RecordToolExecution records a tool invocation.
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, failed bool)

	// RecordEvaluation records an evaluator verdict.
	RecordEvaluation(ctx context.Context, met, userInput bool)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	supersteps     metric.Int64Counter
	stepLatency    metric.Float64Histogram
	llmCalls       metric.Int64Counter
	llmLatency     metric.Float64Histogram
	llmTokens      metric.Int64Counter
	toolCalls      metric.Int64Counter
	toolLatency    metric.Float64Histogram
	evaluations    metric.Int64Counter
	checkpointSize metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("sidekick")

	nodeExecutions, err := meter.Int64Counter("sidekick.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("sidekick.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("sidekick.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	supersteps, err := meter.Int64Counter("sidekick.superstep.runs",
		metric.WithDescription("Number of supersteps"),
	)
	if err != nil {
		return nil, err
	}

	stepLatency, err := meter.Float64Histogram("sidekick.superstep.latency_ms",
		metric.WithDescription("Superstep latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	llmCalls, err := meter.Int64Counter("sidekick.llm.calls",
		metric.WithDescription("Number of model calls"),
	)
	if err != nil {
		return nil, err
	}

	llmLatency, err := meter.Float64Histogram("sidekick.llm.latency_ms",
		metric.WithDescription("Model call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	llmTokens, err := meter.Int64Counter("sidekick.llm.tokens",
		metric.WithDescription("Tokens consumed by model calls"),
	)
	if err != nil {
		return nil, err
	}

	toolCalls, err := meter.Int64Counter("sidekick.tool.executions",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}

	toolLatency, err := meter.Float64Histogram("sidekick.tool.latency_ms",
		metric.WithDescription("Tool execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evaluations, err := meter.Int64Counter("sidekick.evaluations",
		metric.WithDescription("Number of evaluator verdicts"),
	)
	if err != nil {
		return nil, err
	}

	checkpointSize, err := meter.Int64Histogram("sidekick.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		supersteps:     supersteps,
		stepLatency:    stepLatency,
		llmCalls:       llmCalls,
		llmLatency:     llmLatency,
		llmTokens:      llmTokens,
		toolCalls:      toolCalls,
		toolLatency:    toolLatency,
		evaluations:    evaluations,
		checkpointSize: checkpointSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node_id", nodeID),
	}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordSuperstep records a superstep.
func (m *otelMetrics) RecordSuperstep(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.supersteps.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stepLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordLLMCall records a model call.
func (m *otelMetrics) RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, promptTokens, completionTokens int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", model),
		attribute.Bool("error", err != nil),
	}
	m.llmCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if promptTokens > 0 {
		m.llmTokens.Add(ctx, int64(promptTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("direction", "prompt"),
		))
	}
	if completionTokens > 0 {
		m.llmTokens.Add(ctx, int64(completionTokens), metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("direction", "completion"),
		))
	}
}

// RecordToolExecution records a tool invocation.
func (m *otelMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, failed bool) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
		attribute.Bool("failed", failed),
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordEvaluation records an evaluator verdict.
func (m *otelMetrics) RecordEvaluation(ctx context.Context, met, userInput bool) {
	m.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("criteria_met", met),
		attribute.Bool("user_input_needed", userInput),
	))
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	attrs := []attribute.KeyValue{
		attribute.String("node_id", nodeID),
	}
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attrs...))
}
