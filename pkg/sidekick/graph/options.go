package graph

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/randalmurphal/sidekick/pkg/sidekick/observability"
)

const (
	// DefaultMaxIterations is the default execution loop limit.
	DefaultMaxIterations = 1000

	// MaxIterationsLimit is the largest configurable loop limit.
	// Runs that genuinely need more should opt out with WithUnbounded.
	MaxIterationsLimit = 100000
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations int
	unbounded     bool

	checkpointStore        checkpoint.Store
	runID                  string
	sequence               int
	checkpointFailureFatal bool

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// This prevents runaway loops from hanging forever. If a run exceeds
// this limit, Run returns a MaxIterationsError wrapping ErrMaxIterations.
//
// Panics if n is not in [1, MaxIterationsLimit]. Use WithUnbounded to
// disable the ceiling entirely.
func WithMaxIterations(n int) RunOption {
	if n <= 0 {
		panic("graph: max iterations must be > 0")
	}
	if n > MaxIterationsLimit {
		panic(fmt.Sprintf("graph: max iterations exceeds limit (%d)", MaxIterationsLimit))
	}
	return func(c *runConfig) {
		c.maxIterations = n
	}
}

// WithUnbounded disables the iteration ceiling for this run.
// The run then terminates only by reaching END, by error, or by
// context cancellation. Callers opting in should pass a cancellable
// context.
func WithUnbounded() RunOption {
	return func(c *runConfig) {
		c.unbounded = true
	}
}

// WithCheckpointing enables checkpoint persistence to the given store.
// A checkpoint is saved after each successful node execution.
// Requires WithRunID; Run returns ErrRunIDRequired otherwise.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithRunID sets the run identifier used to key checkpoints.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithStrictCheckpoints makes checkpoint failures abort the run.
// By default a failed checkpoint save is logged and execution continues.
func WithStrictCheckpoints() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = true
	}
}

// WithObservabilityLogger sets the logger for run and node lifecycle logs.
// Nil leaves run-level logging disabled; node functions still receive
// the context logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics recording for this run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry span creation for this run.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		}
	}
}
